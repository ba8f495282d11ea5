package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reviewcash/backend/internal/models"
)

type cooldowns struct{ db dbtx }

func (c cooldowns) Claim(ctx context.Context, userID string, platform models.Platform, now time.Time, window time.Duration) (bool, time.Time, error) {
	var recorded time.Time
	err := c.db.QueryRow(ctx, `
		INSERT INTO cooldowns (user_id, platform, submitted_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, platform) DO UPDATE SET submitted_at = EXCLUDED.submitted_at
		WHERE cooldowns.submitted_at <= $4
		RETURNING submitted_at
	`, userID, string(platform), now, now.Add(-window)).Scan(&recorded)
	if err == nil {
		return true, time.Time{}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, time.Time{}, fmt.Errorf("claim cooldown: %w", err)
	}
	var last time.Time
	err = c.db.QueryRow(ctx, `SELECT submitted_at FROM cooldowns WHERE user_id = $1 AND platform = $2`, userID, string(platform)).Scan(&last)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, time.Time{}, fmt.Errorf("read cooldown: %w", err)
	}
	return false, last, nil
}

func (c cooldowns) Clear(ctx context.Context, userID string, platform models.Platform, notAfter time.Time) error {
	_, err := c.db.Exec(ctx, `DELETE FROM cooldowns WHERE user_id = $1 AND platform = $2 AND submitted_at <= $3`,
		userID, string(platform), notAfter)
	if err != nil {
		return fmt.Errorf("clear cooldown: %w", err)
	}
	return nil
}

func (c cooldowns) Last(ctx context.Context, userID string) (map[models.Platform]time.Time, error) {
	rows, err := c.db.Query(ctx, `SELECT platform, submitted_at FROM cooldowns WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("read cooldowns: %w", err)
	}
	defer rows.Close()
	out := make(map[models.Platform]time.Time)
	for rows.Next() {
		var (
			platform string
			at       time.Time
		)
		if err := rows.Scan(&platform, &at); err != nil {
			return nil, err
		}
		out[models.Platform(platform)] = at
	}
	return out, rows.Err()
}
