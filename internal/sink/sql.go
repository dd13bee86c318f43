package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"respreport/internal/models"
	"respreport/internal/report"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrInvalidTable is returned for report table names that are not plain SQL identifiers.
var ErrInvalidTable = errors.New("invalid report table name")

const savedAtKey = "report_saved_at"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

const (
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// SQLSink keeps the report in a table ordered by a position column. A row
// in the metadata table records that the report has been saved at least
// once, which separates an empty report from a missing one.
type SQLSink struct {
	db       *sql.DB
	table    string
	numbered bool // $1 placeholders instead of ?
}

var _ report.Sink = (*SQLSink)(nil)

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path, table string) (*SQLSink, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLSink{db: db, table: table}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to dsn, pings the server and runs migrations.
func OpenPostgres(dsn, table string) (*SQLSink, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLSink{db: db, table: table, numbered: true}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	position       INTEGER PRIMARY KEY,
	schulung       TEXT NOT NULL DEFAULT '',
	datum          TEXT NOT NULL DEFAULT '',
	vorname        TEXT NOT NULL DEFAULT '',
	nachname       TEXT NOT NULL DEFAULT '',
	participant_id TEXT NOT NULL DEFAULT '',
	antwort        TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS metadata (
	report TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (report, key)
)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLSink) Close() error {
	return s.db.Close()
}

// Load returns nil until the first Save has completed.
func (s *SQLSink) Load(ctx context.Context) (*models.Table, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT value FROM metadata WHERE report = ? AND key = ?"),
		s.table, savedAtKey).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT schulung, datum, vorname, nachname, participant_id, antwort FROM "+s.table+" ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	defer rows.Close()

	table := &models.Table{}
	for rows.Next() {
		var r models.Row
		if err := rows.Scan(&r[0], &r[1], &r[2], &r[3], &r[4], &r[5]); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		table.Rows = append(table.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read report rows: %w", err)
	}
	return table, nil
}

// Save replaces all rows in one transaction.
func (s *SQLSink) Save(ctx context.Context, table *models.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.table); err != nil {
		return fmt.Errorf("failed to clear report rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		"INSERT INTO "+s.table+" (position, schulung, datum, vorname, nachname, participant_id, antwort) VALUES (?, ?, ?, ?, ?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	if table != nil {
		for i, r := range table.Rows {
			if _, err := stmt.ExecContext(ctx, i, r[0], r[1], r[2], r[3], r[4], r[5]); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", i+1, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO metadata (report, key, value) VALUES (?, ?, ?)
		ON CONFLICT (report, key) DO UPDATE SET value = excluded.value`),
		s.table, savedAtKey, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record save time: %w", err)
	}

	return tx.Commit()
}

// rebind rewrites ? placeholders for drivers that number them.
func (s *SQLSink) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
