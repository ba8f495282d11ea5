package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/reviewcash/backend/internal/config"
	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/notify"
	"github.com/reviewcash/backend/internal/store"
	"github.com/reviewcash/backend/internal/store/pgstore"
	"github.com/reviewcash/backend/internal/store/sqlitestore"
)

// backend is the durable store plus the notification path that fits it:
// a River queue on Postgres, in-process goroutines on SQLite.
type backend struct {
	store store.Store
	// notifier is built by wireNotifier once the fan-out exists.
	notifier notify.Dispatcher
	start    func(ctx context.Context) error
	stop     func(ctx context.Context)
	pool     *pgxpool.Pool
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("cannot reach PostgreSQL: %w", err)
		}
		slog.Info("Connected to PostgreSQL database successfully!")

		st := pgstore.New(pool, logger)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("create River migrator: %w", err)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			pool.Close()
			return nil, fmt.Errorf("river migrate up: %w", err)
		}
		slog.Info("River migrations applied")
		return &backend{store: st, pool: pool}, nil

	case config.DriverSQLite:
		st, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: cfg.Store.SQLitePath, Logger: logger})
		if err != nil {
			return nil, err
		}
		slog.Info("Opened SQLite database", "path", cfg.Store.SQLitePath)
		return &backend{store: st}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// wireNotifier picks the dispatcher. On Postgres the insert func is set
// after the River client is created, since the worker needs the fan-out
// and the dispatcher needs the client.
func (b *backend) wireNotifier(fanout *notify.Fanout, logger *slog.Logger) error {
	if b.pool == nil {
		async := notify.NewAsync(fanout, logger)
		b.notifier = async
		b.start = func(context.Context) error { return nil }
		b.stop = func(context.Context) { async.Wait() }
		return nil
	}

	var insertMu sync.Mutex
	var insertFn notify.InsertFunc
	b.notifier = notify.NewQueued(func(ctx context.Context, args notify.NotifyJobArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return errors.New("river insert not wired")
		}
		return fn(ctx, args)
	})

	workers := river.NewWorkers()
	river.AddWorker(workers, notify.NewNotifyWorker(fanout))
	riverClient, err := river.NewClient(riverpgxv5.New(b.pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create River client: %w", err)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, args notify.NotifyJobArgs) error {
		_, err := riverClient.Insert(ctx, args, nil)
		return err
	}
	insertMu.Unlock()

	b.start = riverClient.Start
	b.stop = func(ctx context.Context) {
		if err := riverClient.Stop(ctx); err != nil {
			slog.Error("River client stop failed", "error", err)
		}
	}
	return nil
}

func (b *backend) close() {
	if err := b.store.Close(); err != nil {
		slog.Error("close store", "error", err)
	}
}

// seedRoster adds OPERATOR_ROSTER entries ("id" or "id:username").
func seedRoster(ctx context.Context, roster store.Roster, entries []string) error {
	for _, e := range entries {
		id, username, _ := strings.Cut(e, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := roster.Add(ctx, &models.Operator{ID: id, Username: strings.TrimSpace(username)}); err != nil {
			return fmt.Errorf("seed operator %q: %w", id, err)
		}
	}
	return nil
}
