package pgstore

import (
	"context"
	"fmt"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

type roster struct{ db dbtx }

func (r roster) List(ctx context.Context) ([]*models.Operator, error) {
	rows, err := r.db.Query(ctx, `SELECT id, username, added_at FROM operators ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()
	var list []*models.Operator
	for rows.Next() {
		var op models.Operator
		if err := rows.Scan(&op.ID, &op.Username, &op.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, &op)
	}
	return list, rows.Err()
}

func (r roster) Add(ctx context.Context, op *models.Operator) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO operators (id, username) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
		RETURNING added_at
	`, op.ID, op.Username).Scan(&op.AddedAt)
}

func (r roster) Remove(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM operators WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete operator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("operator %s: %w", id, store.ErrNotFound)
	}
	return nil
}
