package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

var dictionaryFields = []string{"id", "document_id", "term", "term_key", "explanation", "context", "source", "page_label", "ctime", "mtime"}

const dictionaryUpsertSQL = `INSERT INTO dictionary_entries
(id, document_id, term, term_key, explanation, context, source, page_label, ctime, mtime)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (document_id, term_key) DO UPDATE SET
term = excluded.term,
explanation = excluded.explanation,
context = excluded.context,
source = excluded.source,
page_label = excluded.page_label,
mtime = excluded.mtime`

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type DictionaryFilter struct {
	DocumentID   string
	DetachedOnly bool
	Query        string
}

type DictionaryRepo struct {
	db *db.DB
	tx *db.Tx
}

func NewDictionaryRepo(db *db.DB) *DictionaryRepo {
	return &DictionaryRepo{db: db}
}

// WithTx returns a copy whose statements run inside tx.
func (r *DictionaryRepo) WithTx(tx *db.Tx) *DictionaryRepo {
	return &DictionaryRepo{db: r.db, tx: tx}
}

func (r *DictionaryRepo) q() queryer {
	return pick(r.db, r.tx)
}

// TermKey normalizes a term for uniqueness checks.
func TermKey(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// UpsertBatch writes entries in one transaction, overwriting entries with the
// same (document_id, term_key). The entries are refreshed with the stored id
// and ctime.
func (r *DictionaryRepo) UpsertBatch(ctx context.Context, entries []*model.DictionaryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return runTx(ctx, r.db, r.tx, func(tx *db.Tx) error {
		for _, entry := range entries {
			entry.TermKey = TermKey(entry.Term)
			if _, err := tx.ExecContext(ctx, dictionaryUpsertSQL,
				entry.ID, entry.DocumentID, entry.Term, entry.TermKey, entry.Explanation,
				entry.Context, entry.Source, entry.PageLabel, entry.Ctime, entry.Mtime); err != nil {
				return err
			}
			stored, err := getDictionaryEntry(ctx, tx, map[string]interface{}{
				"document_id": entry.DocumentID,
				"term_key":    entry.TermKey,
			})
			if err != nil {
				return err
			}
			*entry = *stored
		}
		return nil
	})
}

func (r *DictionaryRepo) GetByID(ctx context.Context, id string) (*model.DictionaryEntry, error) {
	return getDictionaryEntry(ctx, r.q(), map[string]interface{}{"id": id})
}

// List orders by term. DetachedOnly wins over DocumentID; an empty filter
// returns every entry. Query matches literally inside the normalized term.
func (r *DictionaryRepo) List(ctx context.Context, filter DictionaryFilter) ([]model.DictionaryEntry, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.DetachedOnly {
		conds = append(conds, "document_id = ?")
		args = append(args, "")
	} else if filter.DocumentID != "" {
		conds = append(conds, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if q := TermKey(filter.Query); q != "" {
		conds = append(conds, `term_key LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(q)+"%")
	}
	sqlStr := "SELECT " + strings.Join(dictionaryFields, ", ") + " FROM dictionary_entries"
	if len(conds) > 0 {
		sqlStr += " WHERE " + strings.Join(conds, " AND ")
	}
	sqlStr += " ORDER BY term_key ASC, document_id ASC"
	return queryDictionary(ctx, r.q(), sqlStr, args)
}

func (r *DictionaryRepo) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := builder.BuildDelete("dictionary_entries", map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	return execAffected(ctx, r.q(), sqlStr, args)
}

// Detach moves an entry into the cross-document dictionary. When a detached
// entry with the same term already exists it takes over the explanation and
// the scoped entry is removed.
func (r *DictionaryRepo) Detach(ctx context.Context, id string, mtime int64) (*model.DictionaryEntry, error) {
	var out *model.DictionaryEntry
	err := runTx(ctx, r.db, r.tx, func(tx *db.Tx) error {
		entry, err := getDictionaryEntry(ctx, tx, map[string]interface{}{"id": id})
		if err != nil {
			return err
		}
		if entry.DocumentID == "" {
			out = entry
			return nil
		}
		existing, err := getDictionaryEntry(ctx, tx, map[string]interface{}{
			"document_id": "",
			"term_key":    entry.TermKey,
		})
		if err != nil && !appErr.IsNotFound(err) {
			return err
		}
		update := map[string]interface{}{
			"term":        entry.Term,
			"explanation": entry.Explanation,
			"context":     entry.Context,
			"source":      entry.Source,
			"page_label":  entry.PageLabel,
			"mtime":       mtime,
		}
		if existing != nil {
			sqlStr, args, err := builder.BuildUpdate("dictionary_entries", map[string]interface{}{"id": existing.ID}, update)
			if err != nil {
				return err
			}
			if err := execAffected(ctx, tx, sqlStr, args); err != nil {
				return err
			}
			sqlStr, args, err = builder.BuildDelete("dictionary_entries", map[string]interface{}{"id": entry.ID})
			if err != nil {
				return err
			}
			if err := execAffected(ctx, tx, sqlStr, args); err != nil {
				return err
			}
			out, err = getDictionaryEntry(ctx, tx, map[string]interface{}{"id": existing.ID})
			return err
		}
		update["document_id"] = ""
		sqlStr, args, err := builder.BuildUpdate("dictionary_entries", map[string]interface{}{"id": entry.ID}, update)
		if err != nil {
			return err
		}
		if err := execAffected(ctx, tx, sqlStr, args); err != nil {
			return err
		}
		out, err = getDictionaryEntry(ctx, tx, map[string]interface{}{"id": entry.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getDictionaryEntry(ctx context.Context, q queryer, where map[string]interface{}) (*model.DictionaryEntry, error) {
	where["_limit"] = []uint{0, 1}
	items, err := listDictionary(ctx, q, where)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

func listDictionary(ctx context.Context, q queryer, where map[string]interface{}) ([]model.DictionaryEntry, error) {
	sqlStr, args, err := builder.BuildSelect("dictionary_entries", where, dictionaryFields)
	if err != nil {
		return nil, err
	}
	return queryDictionary(ctx, q, sqlStr, args)
}

func queryDictionary(ctx context.Context, q queryer, sqlStr string, args []interface{}) ([]model.DictionaryEntry, error) {
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.DictionaryEntry
	for rows.Next() {
		entry, err := scanDictionary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *entry)
	}
	return items, rows.Err()
}

func scanDictionary(rows *sql.Rows) (*model.DictionaryEntry, error) {
	var e model.DictionaryEntry
	if err := rows.Scan(&e.ID, &e.DocumentID, &e.Term, &e.TermKey, &e.Explanation, &e.Context, &e.Source, &e.PageLabel, &e.Ctime, &e.Mtime); err != nil {
		return nil, err
	}
	return &e, nil
}
