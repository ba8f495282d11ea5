package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

type tasks struct{ db dbtx }

const taskColumns = `id, owner_id, title, link, type, budget, status, created_at, updated_at`

func (t tasks) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = store.NewID("task_")
	}
	if task.Status == "" {
		task.Status = models.TaskStatusActive
	}
	return t.db.QueryRow(ctx, `
		INSERT INTO tasks (id, owner_id, title, link, type, budget, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, task.ID, task.OwnerID, task.Title, task.Link, string(task.Type), task.Budget, task.Status).Scan(&task.CreatedAt, &task.UpdatedAt)
}

func (t tasks) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := scanTask(t.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}
	return task, nil
}

func (t tasks) Update(ctx context.Context, task *models.Task) error {
	err := t.db.QueryRow(ctx, `
		UPDATE tasks SET title = $2, link = $3, budget = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, task.ID, task.Title, task.Link, task.Budget, task.Status).Scan(&task.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("task %s: %w", task.ID, store.ErrNotFound)
	}
	return err
}

func (t tasks) ListActive(ctx context.Context) ([]*models.Task, error) {
	return t.list(ctx, `WHERE status = 'active'`)
}

func (t tasks) ListAll(ctx context.Context) ([]*models.Task, error) {
	return t.list(ctx, ``)
}

func (t tasks) list(ctx context.Context, where string) ([]*models.Task, error) {
	rows, err := t.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, task)
	}
	return list, rows.Err()
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		task models.Task
		typ  string
	)
	if err := row.Scan(&task.ID, &task.OwnerID, &task.Title, &task.Link, &typ, &task.Budget, &task.Status, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.Type = models.Platform(typ)
	return &task, nil
}
