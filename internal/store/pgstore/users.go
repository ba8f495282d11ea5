package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

type users struct{ db dbtx }

const maxInt64 = "9223372036854775807"

const userReturning = `RETURNING id, username, balance, tasks_done, total_earned, created_at, updated_at`

func (u users) Ensure(ctx context.Context, id, username string) (*models.User, error) {
	return u.upsert(ctx, `
		INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE users.username END
		`+userReturning, id, username)
}

func (u users) AdjustBalance(ctx context.Context, id string, delta int64) (*models.User, error) {
	return u.upsert(ctx, `
		INSERT INTO users (id, balance) VALUES ($1, GREATEST($2::bigint, 0))
		ON CONFLICT (id) DO UPDATE SET
			balance = GREATEST(users.balance + $2::bigint, 0),
			updated_at = now()
		WHERE users.balance::numeric + $2 <= `+maxInt64+`
		`+userReturning, id, delta)
}

func (u users) RecordCompletion(ctx context.Context, id string, amount int64) (*models.User, error) {
	return u.upsert(ctx, `
		INSERT INTO users (id, balance, tasks_done, total_earned) VALUES ($1, $2::bigint, 1, $2::bigint)
		ON CONFLICT (id) DO UPDATE SET
			balance = users.balance + $2::bigint,
			tasks_done = users.tasks_done + 1,
			total_earned = users.total_earned + $2::bigint,
			updated_at = now()
		WHERE users.balance::numeric + $2 <= `+maxInt64+`
			AND users.total_earned::numeric + $2 <= `+maxInt64+`
		`+userReturning, id, amount)
}

func (u users) upsert(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := u.db.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Balance, &user.TasksDone, &user.TotalEarned, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrBalanceOverflow
	}
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &user, nil
}
