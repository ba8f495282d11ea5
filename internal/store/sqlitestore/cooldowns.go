package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/reviewcash/backend/internal/models"
)

type cooldowns struct{ q *querier }

func (c cooldowns) Claim(ctx context.Context, userID string, platform models.Platform, now time.Time, window time.Duration) (bool, time.Time, error) {
	var (
		allowed bool
		last    time.Time
	)
	err := c.q.run(ctx, true, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO cooldowns (user_id, platform, submitted_at) VALUES (?1, ?2, ?3)
			ON CONFLICT (user_id, platform) DO UPDATE SET submitted_at = excluded.submitted_at
			WHERE cooldowns.submitted_at <= ?4`, &sqlitex.ExecOptions{
			Args: []any{userID, string(platform), now.UnixNano(), now.Add(-window).UnixNano()},
		})
		if err != nil {
			return err
		}
		if conn.Changes() > 0 {
			allowed = true
			return nil
		}
		return sqlitex.Execute(conn, `SELECT submitted_at FROM cooldowns WHERE user_id = ? AND platform = ?`, &sqlitex.ExecOptions{
			Args: []any{userID, string(platform)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				last = fromNanos(stmt.ColumnInt64(0))
				return nil
			},
		})
	})
	if err != nil {
		return false, time.Time{}, fmt.Errorf("claim cooldown: %w", err)
	}
	return allowed, last, nil
}

func (c cooldowns) Clear(ctx context.Context, userID string, platform models.Platform, notAfter time.Time) error {
	return c.q.run(ctx, false, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `DELETE FROM cooldowns WHERE user_id = ? AND platform = ? AND submitted_at <= ?`, &sqlitex.ExecOptions{
			Args: []any{userID, string(platform), notAfter.UnixNano()},
		})
		if err != nil {
			return fmt.Errorf("clear cooldown: %w", err)
		}
		return nil
	})
}

func (c cooldowns) Last(ctx context.Context, userID string) (map[models.Platform]time.Time, error) {
	out := make(map[models.Platform]time.Time)
	err := c.q.run(ctx, false, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT platform, submitted_at FROM cooldowns WHERE user_id = ?`, &sqlitex.ExecOptions{
			Args: []any{userID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out[models.Platform(stmt.ColumnText(0))] = fromNanos(stmt.ColumnInt64(1))
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read cooldowns: %w", err)
	}
	return out, nil
}
