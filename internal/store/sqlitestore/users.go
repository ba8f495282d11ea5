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

type users struct{ q *querier }

// Integer overflow in SQLite arithmetic yields a REAL, which still compares
// correctly against this bound.
const maxInt64 = "9223372036854775807"

const userReturning = `RETURNING id, username, balance, tasks_done, total_earned, created_at, updated_at`

func (u users) Ensure(ctx context.Context, id, username string) (*models.User, error) {
	return u.upsert(ctx, `
		INSERT INTO users (id, username, created_at, updated_at) VALUES (?1, ?2, ?3, ?3)
		ON CONFLICT (id) DO UPDATE SET
			username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE users.username END
		`+userReturning, id, username, time.Now().UnixNano())
}

func (u users) AdjustBalance(ctx context.Context, id string, delta int64) (*models.User, error) {
	return u.upsert(ctx, `
		INSERT INTO users (id, balance, created_at, updated_at) VALUES (?1, MAX(?2, 0), ?3, ?3)
		ON CONFLICT (id) DO UPDATE SET
			balance = MAX(users.balance + ?2, 0),
			updated_at = ?3
		WHERE users.balance + ?2 <= `+maxInt64+`
		`+userReturning, id, delta, time.Now().UnixNano())
}

func (u users) RecordCompletion(ctx context.Context, id string, amount int64) (*models.User, error) {
	return u.upsert(ctx, `
		INSERT INTO users (id, balance, tasks_done, total_earned, created_at, updated_at)
		VALUES (?1, ?2, 1, ?2, ?3, ?3)
		ON CONFLICT (id) DO UPDATE SET
			balance = users.balance + ?2,
			tasks_done = users.tasks_done + 1,
			total_earned = users.total_earned + ?2,
			updated_at = ?3
		WHERE users.balance + ?2 <= `+maxInt64+` AND users.total_earned + ?2 <= `+maxInt64+`
		`+userReturning, id, amount, time.Now().UnixNano())
}

func (u users) upsert(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user *models.User
	err := u.q.run(ctx, false, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user = &models.User{
					ID:          stmt.ColumnText(0),
					Username:    stmt.ColumnText(1),
					Balance:     stmt.ColumnInt64(2),
					TasksDone:   stmt.ColumnInt64(3),
					TotalEarned: stmt.ColumnInt64(4),
					CreatedAt:   fromNanos(stmt.ColumnInt64(5)),
					UpdatedAt:   fromNanos(stmt.ColumnInt64(6)),
				}
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	if user == nil {
		return nil, store.ErrBalanceOverflow
	}
	return user, nil
}
