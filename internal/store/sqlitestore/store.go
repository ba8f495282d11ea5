// Package sqlitestore is the embedded single-file backend. Timestamps are
// stored as unix nanoseconds; a zero handled_at means "not handled".
package sqlitestore

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/reviewcash/backend/internal/store"
)

//go:embed schema.sql
var schema string

// Config holds the parameters for opening the database.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path string
	// PoolSize defaults to max(runtime.NumCPU(), 4).
	PoolSize int
	Logger   *slog.Logger
}

// Store implements store.Store on a pool of SQLite connections.
type Store struct {
	repos
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string

	closeOnce sync.Once
	closeErr  error
}

var _ store.Store = (*Store)(nil)

// Open creates the pool, applies pragmas to every connection and creates
// the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitestore: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", cfg.Path, err)
	}

	conn, err := pool.Take(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlitestore: take: %w", err)
	}
	err = sqlitex.ExecuteScript(conn, schema, nil)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlitestore: schema: %w", err)
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)
	return &Store{
		repos:  repos{q: &querier{pool: pool}},
		pool:   pool,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// WithinTx runs fn inside an IMMEDIATE transaction on one connection.
func (s *Store) WithinTx(ctx context.Context, fn func(store.Repos) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: take: %w", err)
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer endFn(&err)

	return fn(repos{q: &querier{tx: conn}})
}

// Close blocks until every borrowed connection is returned. Later calls
// return the first result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if err := s.pool.Close(); err != nil {
			s.closeErr = fmt.Errorf("sqlitestore: closing %s: %w", s.path, err)
			return
		}
		s.logger.Info("sqlite store closed", "path", s.path)
	})
	return s.closeErr
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitestore: %s: %w", pragma, err)
		}
	}
	return nil
}

// querier hands out a connection: the transaction's when bound, otherwise
// one borrowed from the pool for the duration of a call.
type querier struct {
	pool *sqlitex.Pool
	tx   *sqlite.Conn
}

// run calls fn with a connection. When atomic is set and no transaction is
// bound, fn runs inside its own IMMEDIATE transaction.
func (q *querier) run(ctx context.Context, atomic bool, fn func(*sqlite.Conn) error) (err error) {
	if q.tx != nil {
		return fn(q.tx)
	}
	conn, err := q.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: take: %w", err)
	}
	defer q.pool.Put(conn)
	if !atomic {
		return fn(conn)
	}
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer endFn(&err)
	return fn(conn)
}

type repos struct{ q *querier }

func (r repos) Users() store.Users         { return users{r.q} }
func (r repos) Requests() store.Requests   { return requests{r.q} }
func (r repos) Tasks() store.Tasks         { return tasks{r.q} }
func (r repos) Roster() store.Roster       { return roster{r.q} }
func (r repos) Cooldowns() store.Cooldowns { return cooldowns{r.q} }

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
