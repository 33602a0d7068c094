package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DB is a database/sql handle plus the dialect its queries are rebound for.
type DB struct {
	sql     *sql.DB
	pool    *pgxpool.Pool
	dialect Dialect
	logger  *slog.Logger
}

// DialectFor picks postgres for postgres:// URLs and sqlite for anything else.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects and returns a handle. Postgres goes through a pgx pool
// wrapped as *sql.DB; sqlite uses the pure-Go driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialect := DialectFor(cfg.DSN)
	logger.Info("connecting to database", "dialect", dialect)

	if dialect == DialectSQLite {
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			return nil, errors.Wrap(err, "open sqlite")
		}
		// one connection keeps :memory: databases shared and writes serialized
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "enable foreign keys")
		}
		logger.Info("successfully connected to database")
		return &DB{sql: db, dialect: dialect, logger: logger}, nil
	}

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, errors.Wrap(err, "parse dsn")
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "repair-orders"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, errors.Wrap(err, "connect postgres")
	}

	logger.Info("successfully connected to database")
	return &DB{sql: stdlib.OpenDBFromPool(pool), pool: pool, dialect: dialect, logger: logger}, nil
}

// Close closes the database connections gracefully.
func (d *DB) Close() {
	d.logger.Info("closing database connections")
	if err := d.sql.Close(); err != nil {
		d.logger.Error("failed to close database", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.logger.Info("database connections closed")
}

// HealthCheck pings the database.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.sql.PingContext(ctx)
}

func (d *DB) Dialect() Dialect { return d.dialect }

// rebind rewrites ? placeholders as $n for postgres.
func (d *DB) rebind(q string) string {
	if d.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
