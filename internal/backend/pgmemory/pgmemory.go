// Package pgmemory persists conversation memory in PostgreSQL.
package pgmemory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/ctxlog"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Provider is the component provider name.
const Provider = "postgres_memory"

const defaultTableName = "memory_records"

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config is the component block body.
type Config struct {
	DSN         string   `hcl:"dsn"`
	Table       string   `hcl:"table,optional"`
	AutoMigrate *bool    `hcl:"auto_migrate,optional"`
	Remain      hcl.Body `hcl:",remain"`
}

// Store implements registry.MemoryStore.
type Store struct {
	db    Querier
	table string
	close func()
	now   func() time.Time
}

var _ registry.MemoryStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTableName overrides the default table. The name is quoted with
// pgx.Identifier since it is interpolated into SQL.
func WithTableName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = pgx.Identifier{name}.Sanitize()
		}
	}
}

// New wraps db. The caller owns db.
func New(db Querier, opts ...Option) *Store {
	s := &Store{db: db, table: defaultTableName, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects a pool to dsn. Close releases it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgmemory: connect: %w", err)
	}
	s := New(pool, WithTableName(cfg.Table))
	s.close = pool.Close
	if cfg.AutoMigrate == nil || *cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate creates the table and index if missing.
func (s *Store) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq BIGSERIAL PRIMARY KEY,
		memory_key TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`, s.table)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("pgmemory: migrate: %w", err)
	}
	index := pgx.Identifier{strings.Trim(s.table, `"`) + "_key_seq"}.Sanitize()
	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (memory_key, seq)`, index, s.table)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("pgmemory: migrate index: %w", err)
	}
	return nil
}

// Append implements registry.MemoryStore. A zero timestamp is replaced with
// the current time.
func (s *Store) Append(ctx context.Context, key string, rec value.MemoryRecord) error {
	at := rec.At
	if at.IsZero() {
		at = s.now()
	}
	query := fmt.Sprintf(`INSERT INTO %s (memory_key, text, created_at) VALUES ($1, $2, $3)`, s.table)
	if _, err := s.db.Exec(ctx, query, key, rec.Text, at); err != nil {
		return fmt.Errorf("pgmemory: append: %w", err)
	}
	return nil
}

// Recent implements registry.MemoryStore, returning the newest limit records
// oldest first.
func (s *Store) Recent(ctx context.Context, key string, limit int) ([]value.MemoryRecord, error) {
	if limit <= 0 {
		return []value.MemoryRecord{}, nil
	}
	query := fmt.Sprintf(`SELECT text, created_at FROM (
			SELECT seq, text, created_at FROM %s WHERE memory_key = $1 ORDER BY seq DESC LIMIT $2
		) sub ORDER BY sub.seq ASC`, s.table)
	rows, err := s.db.Query(ctx, query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("pgmemory: recent: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Search implements registry.MemoryStore with a case-insensitive substring
// match, oldest first.
func (s *Store) Search(ctx context.Context, key, query string, limit int) ([]value.MemoryRecord, error) {
	if limit <= 0 {
		return []value.MemoryRecord{}, nil
	}
	sql := fmt.Sprintf(`SELECT text, created_at FROM %s
		WHERE memory_key = $1 AND text ILIKE $2 ESCAPE '\'
		ORDER BY seq ASC LIMIT $3`, s.table)
	rows, err := s.db.Query(ctx, sql, key, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("pgmemory: search: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Close releases the pool when the Store opened it.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func scanRecords(rows pgx.Rows) ([]value.MemoryRecord, error) {
	records := []value.MemoryRecord{}
	for rows.Next() {
		var rec value.MemoryRecord
		if err := rows.Scan(&rec.Text, &rec.At); err != nil {
			return nil, fmt.Errorf("pgmemory: scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmemory: iterate rows: %w", err)
	}
	return records, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// Module registers the postgres_memory provider.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	r.RegisterProvider(Provider, func(ctx context.Context, id string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
		var cfg Config
		if diags := gohcl.DecodeBody(body, evalCtx, &cfg); diags.HasErrors() {
			return nil, diags
		}
		ctxlog.FromContext(ctx).Debug("Opening Postgres memory store.", "id", id, "table", cfg.Table)
		return Open(ctx, cfg)
	})
}
