package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

type requests struct{ q *querier }

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
	return r.q.run(ctx, false, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO `+table+` (id, user_id, username, amount, status, details, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{req.ID, req.UserID, req.Username, req.Amount, string(req.Status), string(details), toNanos(req.CreatedAt)},
		})
		if err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
		return nil
	})
}

func (r requests) FindByID(ctx context.Context, kind models.Kind, id string) (*models.Request, error) {
	var found *models.Request
	err := r.q.run(ctx, false, func(conn *sqlite.Conn) error {
		var err error
		found, err = findRequest(conn, kind, id)
		return err
	})
	return found, err
}

func (r requests) UpdateStatus(ctx context.Context, kind models.Kind, id string, u store.StatusUpdate) (*models.Request, error) {
	table, err := store.TableFor(kind)
	if err != nil {
		return nil, err
	}
	var updated *models.Request
	err = r.q.run(ctx, true, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			UPDATE `+table+`
			SET status = ?2, handled_by = ?3, handled_at = ?4, reject_reason = ?5
			WHERE id = ?1 AND status = 'pending'
			RETURNING `+requestColumns, &sqlitex.ExecOptions{
			Args: []any{id, string(u.Status), u.HandledBy, toNanos(u.HandledAt), u.Reason},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				updated, err = scanRequest(kind, stmt)
				return err
			},
		})
		if err != nil {
			return fmt.Errorf("update %s status: %w", table, err)
		}
		if updated != nil {
			return nil
		}
		current, err := findRequest(conn, kind, id)
		if err != nil {
			return err
		}
		return &store.AlreadyHandledError{Kind: kind, ID: id, Status: current.Status}
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
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
	var list []*models.Request
	err = r.q.run(ctx, false, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+requestColumns+` FROM `+table+` `+where+` ORDER BY created_at DESC, id DESC`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				req, err := scanRequest(kind, stmt)
				if err != nil {
					return err
				}
				list = append(list, req)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return list, nil
}

func findRequest(conn *sqlite.Conn, kind models.Kind, id string) (*models.Request, error) {
	table, err := store.TableFor(kind)
	if err != nil {
		return nil, err
	}
	var found *models.Request
	err = sqlitex.Execute(conn, `SELECT `+requestColumns+` FROM `+table+` WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var err error
			found, err = scanRequest(kind, stmt)
			return err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	if found == nil {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return found, nil
}

func scanRequest(kind models.Kind, stmt *sqlite.Stmt) (*models.Request, error) {
	req := &models.Request{
		ID:           stmt.ColumnText(0),
		Kind:         kind,
		UserID:       stmt.ColumnText(1),
		Username:     stmt.ColumnText(2),
		Amount:       stmt.ColumnInt64(3),
		Status:       models.Status(stmt.ColumnText(4)),
		CreatedAt:    fromNanos(stmt.ColumnInt64(6)),
		HandledBy:    stmt.ColumnText(7),
		RejectReason: stmt.ColumnText(9),
	}
	if err := json.Unmarshal([]byte(stmt.ColumnText(5)), &req.Details); err != nil {
		return nil, fmt.Errorf("decode details of %s: %w", req.ID, err)
	}
	if at := fromNanos(stmt.ColumnInt64(8)); !at.IsZero() {
		req.HandledAt = &at
	}
	return req, nil
}
