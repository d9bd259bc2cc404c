package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"crmagent/internal/storage"
)

const maxStderrBytes = 4096

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

// Open инициализирует соединение и выполняет миграции. Каталог создается при необходимости.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			subcommand TEXT NOT NULL,
			action TEXT NOT NULL,
			command TEXT NOT NULL,
			encoding TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			status TEXT NOT NULL,
			stderr TEXT,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_ts ON invocations(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_subcommand_ts ON invocations(subcommand, ts);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveInvocation сохраняет запись о вызове.
func (s *Store) SaveInvocation(ctx context.Context, rec storage.InvocationRecord) error {
	ts := rec.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	stderr := rec.Stderr
	if len(stderr) > maxStderrBytes {
		stderr = stderr[len(stderr)-maxStderrBytes:]
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO invocations(subcommand, action, command, encoding, exit_code, status, stderr, duration_ms, ts) VALUES(?,?,?,?,?,?,?,?,?)`,
		rec.Subcommand, rec.Action, rec.Command, rec.Encoding, rec.ExitCode, rec.Status, stderr, rec.Duration.Milliseconds(), ts.UTC())
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

// QueryInvocations возвращает историю по фильтрам, новые записи первыми.
func (s *Store) QueryInvocations(ctx context.Context, q storage.InvocationQuery) ([]storage.InvocationRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	from := q.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := q.To
	if to.IsZero() {
		to = time.Now().UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT subcommand, action, command, encoding, exit_code, status, stderr, duration_ms, ts
FROM invocations
WHERE ts >= ? AND ts <= ? AND (? = '' OR subcommand = ?)
ORDER BY ts DESC, id DESC
LIMIT ?`, from.UTC(), to.UTC(), q.Subcommand, q.Subcommand, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	records := make([]storage.InvocationRecord, 0, limit)
	for rows.Next() {
		var rec storage.InvocationRecord
		var stderr sql.NullString
		var durationMS int64
		var ts string
		if err := rows.Scan(&rec.Subcommand, &rec.Action, &rec.Command, &rec.Encoding, &rec.ExitCode, &rec.Status, &stderr, &durationMS, &ts); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		parsedTS, err := parseSQLiteTS(ts)
		if err != nil {
			return nil, fmt.Errorf("parse invocation timestamp: %w", err)
		}
		rec.Stderr = stderr.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.TS = parsedTS
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return records, nil
}

// Prune удаляет записи старше before.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE ts < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return n, nil
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}

// Write реализует storage.Recorder.
func (s *Store) Write(ctx context.Context, rec storage.InvocationRecord) error {
	return s.SaveInvocation(ctx, rec)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}
