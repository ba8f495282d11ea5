package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

type roster struct{ q *querier }

func (r roster) List(ctx context.Context) ([]*models.Operator, error) {
	var list []*models.Operator
	err := r.q.run(ctx, false, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT id, username, added_at FROM operators ORDER BY added_at, id`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				list = append(list, &models.Operator{
					ID:       stmt.ColumnText(0),
					Username: stmt.ColumnText(1),
					AddedAt:  fromNanos(stmt.ColumnInt64(2)),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	return list, nil
}

func (r roster) Add(ctx context.Context, op *models.Operator) error {
	if op.AddedAt.IsZero() {
		op.AddedAt = time.Now().UTC()
	}
	return r.q.run(ctx, false, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO operators (id, username, added_at) VALUES (?1, ?2, ?3)
			ON CONFLICT (id) DO UPDATE SET username = excluded.username`, &sqlitex.ExecOptions{
			Args: []any{op.ID, op.Username, toNanos(op.AddedAt)},
		})
		if err != nil {
			return fmt.Errorf("upsert operator: %w", err)
		}
		return nil
	})
}

func (r roster) Remove(ctx context.Context, id string) error {
	return r.q.run(ctx, false, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, `DELETE FROM operators WHERE id = ?`, &sqlitex.ExecOptions{Args: []any{id}}); err != nil {
			return fmt.Errorf("delete operator: %w", err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("operator %s: %w", id, store.ErrNotFound)
		}
		return nil
	})
}
