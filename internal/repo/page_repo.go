package repo

import (
	"context"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
)

const pageInsertBatch = 100

type PageRepo struct {
	db *db.DB
	tx *db.Tx
}

func NewPageRepo(db *db.DB) *PageRepo {
	return &PageRepo{db: db}
}

// WithTx returns a copy whose statements run inside tx.
func (r *PageRepo) WithTx(tx *db.Tx) *PageRepo {
	return &PageRepo{db: r.db, tx: tx}
}

func (r *PageRepo) q() queryer {
	return pick(r.db, r.tx)
}

// ReplaceByDocument swaps the stored page texts of a document; pages[i] is page i+1.
func (r *PageRepo) ReplaceByDocument(ctx context.Context, docID string, pages []string) error {
	return runTx(ctx, r.db, r.tx, func(tx *db.Tx) error {
		sqlStr, args, err := builder.BuildDelete("document_pages", map[string]interface{}{"document_id": docID})
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
		for start := 0; start < len(pages); start += pageInsertBatch {
			end := start + pageInsertBatch
			if end > len(pages) {
				end = len(pages)
			}
			data := make([]map[string]interface{}, 0, end-start)
			for i := start; i < end; i++ {
				data = append(data, map[string]interface{}{
					"document_id": docID,
					"page_no":     i + 1,
					"content":     pages[i],
				})
			}
			sqlStr, args, err := builder.BuildInsert("document_pages", data)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByDocument returns pages from..to inclusive; zero bounds are open.
func (r *PageRepo) ListByDocument(ctx context.Context, docID string, from, to int) ([]model.DocumentPage, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"_orderby":    "page_no asc",
	}
	if from > 0 {
		where["page_no >="] = from
	}
	if to > 0 {
		where["page_no <="] = to
	}
	sqlStr, args, err := builder.BuildSelect("document_pages", where, []string{"document_id", "page_no", "content"})
	if err != nil {
		return nil, err
	}
	rows, err := r.q().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []model.DocumentPage
	for rows.Next() {
		var page model.DocumentPage
		if err := rows.Scan(&page.DocumentID, &page.PageNo, &page.Content); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}
