package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/invengine/internal/config"
)

const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"

	defaultMaxConns = 25
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// NewDB opens a connection pool. Each call returns a fresh pool.
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	driver := cfg.Driver
	switch driver {
	case DriverPQ, DriverPGX:
	case "":
		driver = DriverPQ
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(maxConns/5, 1))
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info().Str("driver", driver).Str("host", cfg.Host).Str("db", cfg.DBName).Msg("postgres: connected")

	return Wrap(db, int64(max(maxConns/2, 1))), nil
}

// Wrap adds the transaction limiter to an existing pool.
func Wrap(db *sqlx.DB, concurrentTx int64) *DB {
	return &DB{DB: db, sem: semaphore.NewWeighted(concurrentTx)}
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
