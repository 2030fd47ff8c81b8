package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

var noteFields = []string{"id", "document_id", "title", "content", "ctime", "mtime"}

type NoteRepo struct {
	db *db.DB
}

func NewNoteRepo(db *db.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

func (r *NoteRepo) Create(ctx context.Context, note *model.Note) error {
	data := map[string]interface{}{
		"id":          note.ID,
		"document_id": note.DocumentID,
		"title":       note.Title,
		"content":     note.Content,
		"ctime":       note.Ctime,
		"mtime":       note.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("notes", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *NoteRepo) GetByID(ctx context.Context, noteID string) (*model.Note, error) {
	sqlStr, args, err := builder.BuildSelect("notes", map[string]interface{}{"id": noteID}, noteFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
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
	return scanNote(rows)
}

func (r *NoteRepo) ListByDocument(ctx context.Context, docID string) ([]model.Note, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"_orderby":    "mtime desc, id asc",
	}
	sqlStr, args, err := builder.BuildSelect("notes", where, noteFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *note)
	}
	return items, rows.Err()
}

func (r *NoteRepo) Update(ctx context.Context, note *model.Note) error {
	where := map[string]interface{}{
		"id": note.ID,
	}
	update := map[string]interface{}{
		"title":   note.Title,
		"content": note.Content,
		"mtime":   note.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("notes", where, update)
	if err != nil {
		return err
	}
	return execAffected(ctx, r.db, sqlStr, args)
}

// Delete removes the note and its images, returning the image file keys.
func (r *NoteRepo) Delete(ctx context.Context, noteID string) ([]string, error) {
	var keys []string
	err := r.db.WithTx(ctx, func(tx *db.Tx) error {
		sqlStr, args, err := builder.BuildSelect("note_images", map[string]interface{}{"note_id": noteID}, []string{"file_key"})
		if err != nil {
			return err
		}
		keys, err = queryStrings(ctx, tx, sqlStr, args)
		if err != nil {
			return err
		}
		sqlStr, args, err = builder.BuildDelete("note_images", map[string]interface{}{"note_id": noteID})
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
		sqlStr, args, err = builder.BuildDelete("notes", map[string]interface{}{"id": noteID})
		if err != nil {
			return err
		}
		return execAffected(ctx, tx, sqlStr, args)
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func scanNote(rows *sql.Rows) (*model.Note, error) {
	var note model.Note
	if err := rows.Scan(&note.ID, &note.DocumentID, &note.Title, &note.Content, &note.Ctime, &note.Mtime); err != nil {
		return nil, err
	}
	return &note, nil
}
