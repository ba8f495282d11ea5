package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

type requests struct{ db dbtx }

const requestColumns = `id, user_id, username, amount, status, details, created_at, handled_by, handled_at, reject_reason`

func (r requests) Append(ctx context.Context, req *models.Request) error {
	table, err := store.TableFor(req.Kind)
	if err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = store.NewID(req.Kind.IDPrefix())
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Status = models.StatusPending
	details, err := json.Marshal(req.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO `+table+` (id, user_id, username, amount, status, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.UserID, req.Username, req.Amount, string(req.Status), string(details), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (r requests) FindByID(ctx context.Context, kind models.Kind, id string) (*models.Request, error) {
	table, err := store.TableFor(kind)
	if err != nil {
		return nil, err
	}
	req, err := scanRequest(kind, r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM `+table+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return req, nil
}

func (r requests) UpdateStatus(ctx context.Context, kind models.Kind, id string, u store.StatusUpdate) (*models.Request, error) {
	table, err := store.TableFor(kind)
	if err != nil {
		return nil, err
	}
	req, err := scanRequest(kind, r.db.QueryRow(ctx, `
		UPDATE `+table+`
		SET status = $2, handled_by = $3, handled_at = $4, reject_reason = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns, id, string(u.Status), u.HandledBy, u.HandledAt, u.Reason))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update %s status: %w", table, err)
	}
	current, err := r.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return nil, &store.AlreadyHandledError{Kind: kind, ID: id, Status: current.Status}
}

func (r requests) ListActive(ctx context.Context, kind models.Kind) ([]*models.Request, error) {
	return r.list(ctx, kind, `WHERE status = 'pending'`)
}

func (r requests) ListAll(ctx context.Context, kind models.Kind) ([]*models.Request, error) {
	return r.list(ctx, kind, ``)
}

func (r requests) list(ctx context.Context, kind models.Kind, where string) ([]*models.Request, error) {
	table, err := store.TableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+requestColumns+` FROM `+table+` `+where+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	var list []*models.Request
	for rows.Next() {
		req, err := scanRequest(kind, rows)
		if err != nil {
			return nil, err
		}
		list = append(list, req)
	}
	return list, rows.Err()
}

func scanRequest(kind models.Kind, row pgx.Row) (*models.Request, error) {
	req := models.Request{Kind: kind}
	var (
		status  string
		details string
	)
	err := row.Scan(&req.ID, &req.UserID, &req.Username, &req.Amount, &status, &details,
		&req.CreatedAt, &req.HandledBy, &req.HandledAt, &req.RejectReason)
	if err != nil {
		return nil, err
	}
	req.Status = models.Status(status)
	if err := json.Unmarshal([]byte(details), &req.Details); err != nil {
		return nil, fmt.Errorf("decode details of %s: %w", req.ID, err)
	}
	return &req, nil
}
