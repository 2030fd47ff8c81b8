package repo

import (
	"context"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
	"github.com/xxxsen/notemate/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

var noteImageFields = []string{"id", "note_id", "document_id", "file_key", "name", "content_type", "size", "ctime"}

type NoteImageRepo struct {
	db *db.DB
}

func NewNoteImageRepo(db *db.DB) *NoteImageRepo {
	return &NoteImageRepo{db: db}
}

func (r *NoteImageRepo) Create(ctx context.Context, image *model.NoteImage) error {
	data := map[string]interface{}{
		"id":           image.ID,
		"note_id":      image.NoteID,
		"document_id":  image.DocumentID,
		"file_key":     image.FileKey,
		"name":         image.Name,
		"content_type": image.ContentType,
		"size":         image.Size,
		"ctime":        image.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("note_images", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return fmt.Errorf("%w: note image %s already exists", appErr.ErrConflict, image.ID)
		}
		return err
	}
	return nil
}

func (r *NoteImageRepo) GetByID(ctx context.Context, id string) (*model.NoteImage, error) {
	items, err := r.list(ctx, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

func (r *NoteImageRepo) ListByNote(ctx context.Context, noteID string) ([]model.NoteImage, error) {
	where := map[string]interface{}{
		"note_id":  noteID,
		"_orderby": "ctime asc, id asc",
	}
	return r.list(ctx, where)
}

func (r *NoteImageRepo) list(ctx context.Context, where map[string]interface{}) ([]model.NoteImage, error) {
	sqlStr, args, err := builder.BuildSelect("note_images", where, noteImageFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.NoteImage
	for rows.Next() {
		var img model.NoteImage
		if err := rows.Scan(&img.ID, &img.NoteID, &img.DocumentID, &img.FileKey, &img.Name, &img.ContentType, &img.Size, &img.Ctime); err != nil {
			return nil, err
		}
		items = append(items, img)
	}
	return items, rows.Err()
}

// ListFileKeys returns the subset of keys that belong to a note image.
func (r *NoteImageRepo) ListFileKeys(ctx context.Context, keys []string) ([]string, error) {
	return filterReferenced(ctx, r.db, "note_images", "file_key", keys)
}
