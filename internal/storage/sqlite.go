package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Options selects and addresses the content database. Path is used by
// sqlite only; DSN, when set, wins over the discrete fields.
type Options struct {
	Driver   string
	Path     string
	DSN      string
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// DB wraps the SQL connection used by the project, revision and blob stores.
type DB struct {
	conn   *sql.DB
	driver string
}

// OpenSQLite opens (or creates) the embedded database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*DB, error) {
	return Open(Options{Driver: DriverSQLite, Path: path})
}

func Open(opts Options) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	dsn, err := buildDSN(opts)
	if err != nil {
		return nil, err
	}
	if opts.Driver == DriverSQLite && opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	if opts.Driver == DriverSQLite {
		// SQLite only supports one writer; a single connection also keeps
		// an in-memory database alive.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	db := &DB{conn: conn, driver: opts.Driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func buildDSN(opts Options) (string, error) {
	if opts.DSN != "" {
		return opts.DSN, nil
	}
	switch opts.Driver {
	case DriverSQLite:
		if opts.Path == ":memory:" {
			return ":memory:", nil
		}
		return opts.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	case DriverPostgres:
		return buildPostgresDSN(opts), nil
	case DriverMySQL:
		return buildMySQLDSN(opts), nil
	}
	return "", fmt.Errorf("unsupported driver: %s", opts.Driver)
}

// buildPostgresDSN constructs a key/value Postgres connection string.
func buildPostgresDSN(opts Options) string {
	port := opts.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		opts.Host, port, opts.Username, opts.Password, opts.Database,
	)
}

// buildMySQLDSN constructs a go-sql-driver DSN. parseTime is required to scan
// DATETIME columns into time.Time.
func buildMySQLDSN(opts Options) string {
	port := opts.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		opts.Username, opts.Password, opts.Host, port, opts.Database,
	)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Driver() string {
	return db.driver
}

// Rebind rewrites ? placeholders into $n for Postgres.
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// column types differ per dialect
func (db *DB) types() (id, text, blob, ts string) {
	switch db.driver {
	case DriverPostgres:
		return "VARCHAR(64)", "TEXT", "BYTEA", "TIMESTAMPTZ"
	case DriverMySQL:
		return "VARCHAR(64)", "LONGTEXT", "LONGBLOB", "DATETIME(6)"
	}
	return "TEXT", "TEXT", "BLOB", "DATETIME"
}

func (db *DB) migrate() error {
	id, text, blob, ts := db.types()
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id ` + id + ` PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			content ` + text + ` NOT NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS revisions (
			id ` + id + ` PRIMARY KEY,
			project_id ` + id + ` NOT NULL,
			seq BIGINT NOT NULL,
			label VARCHAR(255) NOT NULL,
			content ` + text + ` NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX idx_revisions_project ON revisions(project_id)`,
		`CREATE TABLE IF NOT EXISTS blobs (
			blob_key ` + id + ` PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			content_type VARCHAR(255) NOT NULL,
			size BIGINT NOT NULL,
			data ` + blob + ` NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			setting_key VARCHAR(64) PRIMARY KEY,
			value ` + text + ` NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			// CREATE INDEX has no portable IF NOT EXISTS; a rerun is harmless
			if strings.HasPrefix(m, "CREATE INDEX") && isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", m[:40], err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate key name")
}
