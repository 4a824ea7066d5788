package db

import (
	"database/sql"
	"embed"
	"fmt"
	"log"
	"regexp"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DB struct {
	conn   *sql.DB
	driver string
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// DriverFor picks the SQL driver from a DSN: postgres:// and postgresql://
// URLs use lib/pq, sqlite:// or file: paths (and bare paths) use SQLite.
func DriverFor(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(dsn, "sqlite://")
	default:
		return DriverSQLite, dsn
	}
}

func Connect(dsn string) (*DB, error) {
	driver, source := DriverFor(dsn)
	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection also keeps :memory: databases shared.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	log.Printf("[DB] Connected (%s)\n", driver)
	return &DB{conn: conn, driver: driver}, nil
}

func (d *DB) Driver() string {
	return d.driver
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Ping() error {
	return d.conn.Ping()
}

// Queries are written with $N placeholders; SQLite gets ?N.
func (d *DB) rebind(query string) string {
	if d.driver != DriverSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	return d.conn.QueryRow(d.rebind(query), args...)
}

func (d *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return d.conn.Query(d.rebind(query), args...)
}

func (d *DB) Exec(query string, args ...any) (sql.Result, error) {
	return d.conn.Exec(d.rebind(query), args...)
}

func (d *DB) Migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}

	for _, entry := range entries {
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		if _, err := d.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", entry.Name(), err)
		}
		log.Printf("[DB] Applied migration: %s\n", entry.Name())
	}
	return nil
}
