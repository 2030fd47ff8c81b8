package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
)

var chatFields = []string{"id", "document_id", "category", "role", "content", "ctime", "seq"}

type ChatRepo struct {
	db *db.DB
	tx *db.Tx
}

func NewChatRepo(db *db.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// WithTx returns a copy whose statements run inside tx.
func (r *ChatRepo) WithTx(tx *db.Tx) *ChatRepo {
	return &ChatRepo{db: r.db, tx: tx}
}

func (r *ChatRepo) q() queryer {
	return pick(r.db, r.tx)
}

// Append stores all messages or none.
func (r *ChatRepo) Append(ctx context.Context, msgs ...*model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		data = append(data, map[string]interface{}{
			"id":          msg.ID,
			"document_id": msg.DocumentID,
			"category":    msg.Category,
			"role":        msg.Role,
			"content":     msg.Content,
			"ctime":       msg.Ctime,
			"seq":         msg.Seq,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chat_messages", data)
	if err != nil {
		return err
	}
	return runTx(ctx, r.db, r.tx, func(tx *db.Tx) error {
		_, err := tx.ExecContext(ctx, sqlStr, args...)
		return err
	})
}

func (r *ChatRepo) ListByCategory(ctx context.Context, docID, category string) ([]model.ChatMessage, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"category":    category,
		"_orderby":    "ctime asc, seq asc",
	}
	return r.list(ctx, where)
}

// ListRecent returns at most limit of the latest messages, oldest first.
func (r *ChatRepo) ListRecent(ctx context.Context, docID, category string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	where := map[string]interface{}{
		"document_id": docID,
		"category":    category,
		"_orderby":    "ctime desc, seq desc",
		"_limit":      []uint{0, uint(limit)},
	}
	items, err := r.list(ctx, where)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (r *ChatRepo) Delete(ctx context.Context, docID, category, msgID string) error {
	where := map[string]interface{}{
		"id":          msgID,
		"document_id": docID,
		"category":    category,
	}
	sqlStr, args, err := builder.BuildDelete("chat_messages", where)
	if err != nil {
		return err
	}
	return execAffected(ctx, r.q(), sqlStr, args)
}

func (r *ChatRepo) DeleteByCategory(ctx context.Context, docID, category string) (int64, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"category":    category,
	}
	sqlStr, args, err := builder.BuildDelete("chat_messages", where)
	if err != nil {
		return 0, err
	}
	result, err := r.q().ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ChatRepo) list(ctx context.Context, where map[string]interface{}) ([]model.ChatMessage, error) {
	sqlStr, args, err := builder.BuildSelect("chat_messages", where, chatFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.q().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.ChatMessage
	for rows.Next() {
		msg, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *msg)
	}
	return items, rows.Err()
}

func scanChat(rows *sql.Rows) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	if err := rows.Scan(&msg.ID, &msg.DocumentID, &msg.Category, &msg.Role, &msg.Content, &msg.Ctime, &msg.Seq); err != nil {
		return nil, err
	}
	return &msg, nil
}
