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

type tasks struct{ q *querier }

const taskColumns = `id, owner_id, title, link, type, budget, status, created_at, updated_at`

func (t tasks) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = store.NewID("task_")
	}
	if task.Status == "" {
		task.Status = models.TaskStatusActive
	}
	now := time.Now().UTC()
	task.CreatedAt, task.UpdatedAt = now, now
	return t.q.run(ctx, false, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{task.ID, task.OwnerID, task.Title, task.Link, string(task.Type), task.Budget, task.Status, toNanos(now), toNanos(now)},
		})
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
}

func (t tasks) Get(ctx context.Context, id string) (*models.Task, error) {
	var found *models.Task
	err := t.q.run(ctx, false, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = scanTask(stmt)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	return found, nil
}

func (t tasks) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	return t.q.run(ctx, false, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			UPDATE tasks SET title = ?2, link = ?3, budget = ?4, status = ?5, updated_at = ?6 WHERE id = ?1`, &sqlitex.ExecOptions{
			Args: []any{task.ID, task.Title, task.Link, task.Budget, task.Status, toNanos(task.UpdatedAt)},
		})
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("task %s: %w", task.ID, store.ErrNotFound)
		}
		return nil
	})
}

func (t tasks) ListActive(ctx context.Context) ([]*models.Task, error) {
	return t.list(ctx, `WHERE status = 'active'`)
}

func (t tasks) ListAll(ctx context.Context) ([]*models.Task, error) {
	return t.list(ctx, ``)
}

func (t tasks) list(ctx context.Context, where string) ([]*models.Task, error) {
	var list []*models.Task
	err := t.q.run(ctx, false, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY created_at DESC, id DESC`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				list = append(list, scanTask(stmt))
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return list, nil
}

func scanTask(stmt *sqlite.Stmt) *models.Task {
	return &models.Task{
		ID:        stmt.ColumnText(0),
		OwnerID:   stmt.ColumnText(1),
		Title:     stmt.ColumnText(2),
		Link:      stmt.ColumnText(3),
		Type:      models.Platform(stmt.ColumnText(4)),
		Budget:    stmt.ColumnInt64(5),
		Status:    stmt.ColumnText(6),
		CreatedAt: fromNanos(stmt.ColumnInt64(7)),
		UpdatedAt: fromNanos(stmt.ColumnInt64(8)),
	}
}
