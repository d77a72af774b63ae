package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/stayhaven/booking-backend/internal/config"
)

// DB is the query surface the repositories depend on. Production wires a
// PostgresDB; tests wire the same type around a sqlmock connection.
type DB interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	Exec(query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
	Ping() error
	PingContext(ctx context.Context) error
	Close() error
}

// PostgresDB satisfies DB through the embedded handle's promoted methods.
type PostgresDB struct {
	*sqlx.DB
}

// NewConnection opens a postgres pool, applies the pool limits from cfg
// and verifies the database is reachable before returning.
func NewConnection(cfg config.DatabaseConfig) (DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sqlx.Open("postgres", poolerCompatibleDSN(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// poolerCompatibleDSN forces the simple query protocol. Transaction-mode
// poolers (PgBouncer, Supavisor) break extended-protocol prepared
// statements, which surfaces as "bind message has N result formats but
// query has M columns" errors under load.
func poolerCompatibleDSN(raw string) string {
	if strings.Contains(raw, "prefer_simple_protocol") {
		return raw
	}
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		return raw + sep + "prefer_simple_protocol=true"
	}
	// key=value DSN form
	return raw + " prefer_simple_protocol=true"
}
