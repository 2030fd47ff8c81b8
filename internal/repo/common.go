package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/notemate/internal/db"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

// queryer is satisfied by both *db.DB and *db.Tx, so the same helpers run
// inside and outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const inChunkSize = 500

func pick(conn *db.DB, tx *db.Tx) queryer {
	if tx != nil {
		return tx
	}
	return conn
}

// runTx joins tx when the repo is already bound to one.
func runTx(ctx context.Context, conn *db.DB, tx *db.Tx, fn func(tx *db.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	return conn.WithTx(ctx, fn)
}

func execAffected(ctx context.Context, q queryer, sqlStr string, args []interface{}) error {
	result, err := q.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func queryStrings(ctx context.Context, q queryer, sqlStr string, args []interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// filterReferenced returns the subset of keys present in table.column.
func filterReferenced(ctx context.Context, q queryer, table, column string, keys []string) ([]string, error) {
	var out []string
	for start := 0; start < len(keys); start += inChunkSize {
		end := start + inChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		query, args, err := sqlx.In("SELECT DISTINCT "+column+" FROM "+table+" WHERE "+column+" IN (?)", keys[start:end])
		if err != nil {
			return nil, err
		}
		found, err := queryStrings(ctx, q, query, args)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}
