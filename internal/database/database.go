// Package database provides record-store connection management for embedadopt.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver, registered as "pgx"
	_ "modernc.org/sqlite"             // SQLite driver, registered as "sqlite"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/config"
	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/sqlutil"
)

// Manager owns the single connection pool to the record store.
type Manager struct {
	DB      *sql.DB
	Dialect sqlutil.Dialect
	config  *config.DatabaseConfig

	maxRetries int
	backoff    time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.DatabaseConfig) *Manager {
	m := &Manager{
		config:     cfg,
		maxRetries: 3,
		backoff:    time.Second,
	}
	if cfg != nil {
		m.Dialect = sqlutil.ParseDialect(cfg.Driver)
	}
	return m
}

// Connect opens the pool and verifies it with a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if m.config == nil {
		return fmt.Errorf("database configuration is missing")
	}

	db, err := m.connectWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", m.config.Driver, err)
	}
	m.DB = db
	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context) (*sql.DB, error) {
	var err error
	backoff := m.backoff

	for i := 0; i < m.maxRetries; i++ {
		var db *sql.DB
		db, err = m.open()
		if err == nil {
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.maxRetries, err)
}

// open creates the pool without touching the network.
func (m *Manager) open() (*sql.DB, error) {
	cfg := m.config

	db, err := sql.Open(DriverName(cfg.Driver), BuildDSN(cfg))
	if err != nil {
		return nil, err
	}

	if m.Dialect == sqlutil.SQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
		return db, nil
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// DriverName maps a configured driver to the database/sql driver name.
func DriverName(driver string) string {
	switch sqlutil.ParseDialect(driver) {
	case sqlutil.Postgres:
		return "pgx"
	case sqlutil.SQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// BuildDSN constructs the data source name for the configured driver.
func BuildDSN(cfg *config.DatabaseConfig) string {
	switch sqlutil.ParseDialect(cfg.Driver) {
	case sqlutil.Postgres:
		return buildPostgresDSN(cfg)
	case sqlutil.SQLite:
		return cfg.Path
	default:
		return buildMySQLDSN(cfg)
	}
}

// buildMySQLDSN formats user:password@tcp(host:port)/database?params
func buildMySQLDSN(cfg *config.DatabaseConfig) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	// clientFoundRows makes UPDATE report matched rows, so an unchanged save
	// is not mistaken for a missing record.
	params := "?parseTime=true&clientFoundRows=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// buildPostgresDSN returns cfg.DSN verbatim when set, otherwise a postgres:// URL.
func buildPostgresDSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}

	q := url.Values{}
	switch cfg.TLS {
	case "disable":
		q.Set("sslmode", "disable")
	case "required":
		q.Set("sslmode", "require")
	default:
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Close closes the pool.
func (m *Manager) Close() error {
	if m.DB == nil {
		return nil
	}
	if err := m.DB.Close(); err != nil {
		return fmt.Errorf("database close: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.DB == nil {
		return fmt.Errorf("database not connected")
	}
	if err := m.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
