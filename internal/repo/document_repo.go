package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
	"github.com/xxxsen/notemate/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

var documentFields = []string{"id", "filename", "file_key", "size", "page_count", "extract_state", "extract_error", "ctime", "mtime"}

type DocumentRepo struct {
	db *db.DB
	tx *db.Tx
}

func NewDocumentRepo(db *db.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// WithTx returns a copy whose statements run inside tx.
func (r *DocumentRepo) WithTx(tx *db.Tx) *DocumentRepo {
	return &DocumentRepo{db: r.db, tx: tx}
}

func (r *DocumentRepo) q() queryer {
	return pick(r.db, r.tx)
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":            doc.ID,
		"filename":      doc.Filename,
		"file_key":      doc.FileKey,
		"size":          doc.Size,
		"page_count":    doc.PageCount,
		"extract_state": doc.ExtractState,
		"extract_error": doc.ExtractError,
		"ctime":         doc.Ctime,
		"mtime":         doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	if _, err := r.q().ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return fmt.Errorf("%w: document %s already exists", appErr.ErrConflict, doc.ID)
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id": docID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.q().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

// List returns all documents, newest upload first.
func (r *DocumentRepo) List(ctx context.Context) ([]model.Document, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc, id asc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.q().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *doc)
	}
	return items, rows.Err()
}

func (r *DocumentRepo) UpdateFilename(ctx context.Context, docID, filename string, mtime int64) error {
	where := map[string]interface{}{
		"id": docID,
	}
	update := map[string]interface{}{
		"filename": filename,
		"mtime":    mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	return execAffected(ctx, r.q(), sqlStr, args)
}

func (r *DocumentRepo) UpdateExtraction(ctx context.Context, doc *model.Document) error {
	where := map[string]interface{}{
		"id": doc.ID,
	}
	update := map[string]interface{}{
		"page_count":    doc.PageCount,
		"extract_state": doc.ExtractState,
		"extract_error": doc.ExtractError,
		"mtime":         doc.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	return execAffected(ctx, r.q(), sqlStr, args)
}

// DeleteCascade removes the document together with its pages, notes, note
// images, chat messages and document-scoped dictionary entries in one
// transaction. It returns the file keys that are no longer referenced.
func (r *DocumentRepo) DeleteCascade(ctx context.Context, docID string) ([]string, error) {
	var fileKeys []string
	err := runTx(ctx, r.db, r.tx, func(tx *db.Tx) error {
		sqlStr, args, err := builder.BuildSelect("documents", map[string]interface{}{"id": docID}, []string{"file_key"})
		if err != nil {
			return err
		}
		docKeys, err := queryStrings(ctx, tx, sqlStr, args)
		if err != nil {
			return err
		}
		if len(docKeys) == 0 {
			return appErr.ErrNotFound
		}
		sqlStr, args, err = builder.BuildSelect("note_images", map[string]interface{}{"document_id": docID}, []string{"file_key"})
		if err != nil {
			return err
		}
		imageKeys, err := queryStrings(ctx, tx, sqlStr, args)
		if err != nil {
			return err
		}
		for _, table := range []string{"document_pages", "note_images", "notes", "chat_messages", "dictionary_entries"} {
			sqlStr, args, err := builder.BuildDelete(table, map[string]interface{}{"document_id": docID})
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
				return err
			}
		}
		sqlStr, args, err = builder.BuildDelete("documents", map[string]interface{}{"id": docID})
		if err != nil {
			return err
		}
		if err := execAffected(ctx, tx, sqlStr, args); err != nil {
			return err
		}
		fileKeys = append(docKeys, imageKeys...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fileKeys, nil
}

// ListFileKeys returns the subset of keys that belong to a document.
func (r *DocumentRepo) ListFileKeys(ctx context.Context, keys []string) ([]string, error) {
	return filterReferenced(ctx, r.q(), "documents", "file_key", keys)
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	if err := rows.Scan(&doc.ID, &doc.Filename, &doc.FileKey, &doc.Size, &doc.PageCount, &doc.ExtractState, &doc.ExtractError, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	return &doc, nil
}
