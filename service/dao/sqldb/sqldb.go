// Package sqldb opens the relational database behind the SQL stores, applies
// the embedded schema and carries unit-of-work transactions in a context.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Config describes a database connection.
type Config struct {
	Driver          string        `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `json:"maxOpenConns,omitempty" yaml:"maxOpenConns,omitempty" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"maxIdleConns,omitempty" yaml:"maxIdleConns,omitempty" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime,omitempty" yaml:"connMaxLifetime,omitempty" mapstructure:"conn_max_lifetime"`
}

// Dialect returns the schema dialect of driver: sqlite or postgres.
func Dialect(driver string) string {
	switch driver {
	case DriverPostgres, DriverPgx:
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg *Config) (*sqlx.DB, error) {
	if cfg == nil || cfg.Driver == "" {
		return nil, fmt.Errorf("sqldb: driver is required")
	}
	dsn := cfg.DSN
	switch cfg.Driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres, DriverPgx:
		if dsn == "" {
			return nil, fmt.Errorf("sqldb: dsn is required for %s", cfg.Driver)
		}
	default:
		return nil, fmt.Errorf("sqldb: unsupported driver %q", cfg.Driver)
	}
	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: failed to open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// one writer; an in-memory database also lives and dies with its connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
		db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 5))
		lifetime := cfg.ConnMaxLifetime
		if lifetime == 0 {
			lifetime = 5 * time.Minute
		}
		db.SetConnMaxLifetime(lifetime)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqldb: failed to connect to %s: %w", cfg.Driver, err)
	}
	return db, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	pragmas := []string{"busy_timeout(5000)", "foreign_keys(1)"}
	if dsn != ":memory:" && !strings.Contains(dsn, "mode=memory") {
		pragmas = append(pragmas, "journal_mode(WAL)", "synchronous(NORMAL)")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, pragma := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(pragma)
		sep = "&"
	}
	return b.String()
}

// Migrate applies the embedded schema for db's dialect. Statements are
// idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	dialect := Dialect(db.DriverName())
	data, err := schemaFS.ReadFile("schema/" + dialect + ".sql")
	if err != nil {
		return fmt.Errorf("sqldb: missing %s schema: %w", dialect, err)
	}
	for _, stmt := range strings.Split(string(data), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqldb: migration failed: %w", err)
		}
	}
	return nil
}

type txKey struct{ db *sqlx.DB }

// WithTx binds tx to db in ctx so that Executor resolves to it.
func WithTx(ctx context.Context, db *sqlx.DB, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{db: db}, tx)
}

// TxFrom returns the transaction bound to db in ctx, if any.
func TxFrom(ctx context.Context, db *sqlx.DB) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{db: db}).(*sqlx.Tx)
	return tx
}

// Executor returns the active transaction for db, or db itself.
func Executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := TxFrom(ctx, db); tx != nil {
		return tx
	}
	return db
}

// InTx runs fn inside a transaction. When ctx already carries one for db, fn
// joins it and the outermost call commits.
func InTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context) error) (err error) {
	if TxFrom(ctx, db) != nil {
		return fn(ctx)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqldb: failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err = fn(WithTx(ctx, db, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqldb: failed to commit: %w", err)
	}
	return nil
}
