package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/loan-desk/internal/model"
	"github.com/sells-group/loan-desk/internal/resilience"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	retry   resilience.RetryConfig
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, retry resilience.RetryConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, retry: retry}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	name       TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	revision   BIGINT NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) retryConfig(op string) resilience.RetryConfig {
	cfg := s.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("postgres", op)
	}
	return cfg
}

func (s *PostgresStore) Load(ctx context.Context) (*model.Document, error) {
	body, err := resilience.DoVal(ctx, s.retryConfig("load"), func(ctx context.Context) ([]byte, error) {
		var body []byte
		err := s.pool.QueryRow(ctx,
			`SELECT body FROM documents WHERE name = $1`, DocumentName,
		).Scan(&body)
		return body, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		doc := model.NewDocument()
		if err := s.Save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load document")
	}
	doc, err := decode(body)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load document")
	}
	return doc, nil
}

func (s *PostgresStore) Save(ctx context.Context, doc *model.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal document")
	}

	err = resilience.Do(ctx, s.retryConfig("save"), func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO documents (name, body, revision, updated_at) VALUES ($1, $2, 1, $3)
			ON CONFLICT (name) DO UPDATE SET
				body = EXCLUDED.body,
				revision = documents.revision + 1,
				updated_at = EXCLUDED.updated_at`,
			DocumentName, body, time.Now().UTC(),
		)
		return err
	})
	return eris.Wrap(err, "postgres: upsert document")
}
