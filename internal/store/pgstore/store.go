// Package pgstore is the PostgreSQL backend.
package pgstore

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reviewcash/backend/internal/store"
)

//go:embed schema.sql
var schema string

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store on a pgx pool.
type Store struct {
	repos
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps an existing pool. The caller owns the pool unless Close is called.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repos: repos{db: pool}, pool: pool, logger: logger}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Info("store schema applied")
	return nil
}

// Pool exposes the pool so the job queue can share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) WithinTx(ctx context.Context, fn func(store.Repos) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(repos{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type repos struct{ db dbtx }

func (r repos) Users() store.Users         { return users{r.db} }
func (r repos) Requests() store.Requests   { return requests{r.db} }
func (r repos) Tasks() store.Tasks         { return tasks{r.db} }
func (r repos) Roster() store.Roster       { return roster{r.db} }
func (r repos) Cooldowns() store.Cooldowns { return cooldowns{r.db} }
