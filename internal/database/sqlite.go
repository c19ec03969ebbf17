// Package database stores file metadata rows and usage logs in SQLite.
//
// The driver is modernc.org/sqlite, a pure Go implementation, so the
// binary builds without cgo.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/taishikato/supavec-api/pkg/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite connection.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies
// pending migrations. Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	d := &DB{db: db, path: path}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// InsertFile records a stored page.
func (d *DB) InsertFile(ctx context.Context, f models.File) error {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO files (file_id, type, file_name, title, team_id, storage_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.FileID, f.Type, f.FileName, f.Title, f.TeamID, f.StoragePath, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting file %s: %w", f.FileID, err)
	}
	return nil
}

// GetFile returns the file row owned by teamID.
func (d *DB) GetFile(ctx context.Context, teamID, fileID string) (*models.File, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT file_id, type, file_name, title, team_id, storage_path, created_at
		FROM files WHERE file_id = ? AND team_id = ?`,
		fileID, teamID,
	)

	var (
		f         models.File
		createdAt string
	)
	if err := row.Scan(&f.FileID, &f.Type, &f.FileName, &f.Title, &f.TeamID, &f.StoragePath, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting file %s: %w", fileID, err)
	}
	f.CreatedAt = parseTime(createdAt)

	return &f, nil
}

// ListFiles returns a team's files, newest first.
func (d *DB) ListFiles(ctx context.Context, teamID string, limit int) ([]models.File, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT file_id, type, file_name, title, team_id, storage_path, created_at
		FROM files WHERE team_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		teamID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		var (
			f         models.File
			createdAt string
		)
		if err := rows.Scan(&f.FileID, &f.Type, &f.FileName, &f.Title, &f.TeamID, &f.StoragePath, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		f.CreatedAt = parseTime(createdAt)
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a file row. Deleting a missing row is not an error.
func (d *DB) DeleteFile(ctx context.Context, fileID string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM files WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("deleting file %s: %w", fileID, err)
	}
	return nil
}

// InsertUsageLog appends one usage entry.
func (d *DB) InsertUsageLog(ctx context.Context, l models.UsageLog) error {
	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var errText sql.NullString
	if l.Error != nil {
		errText = sql.NullString{String: *l.Error, Valid: true}
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO usage_logs (user_id, endpoint, success, error, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.UserID, l.Endpoint, l.Success, errText, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting usage log: %w", err)
	}
	return nil
}

// ListUsageLogs returns a user's usage entries, oldest first.
func (d *DB) ListUsageLogs(ctx context.Context, userID string) ([]models.UsageLog, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT user_id, endpoint, success, error, created_at
		FROM usage_logs WHERE user_id = ?
		ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing usage logs: %w", err)
	}
	defer rows.Close()

	var logs []models.UsageLog
	for rows.Next() {
		var (
			l         models.UsageLog
			errText   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&l.UserID, &l.Endpoint, &l.Success, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning usage log: %w", err)
		}
		if errText.Valid {
			msg := errText.String
			l.Error = &msg
		}
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		slog.Debug("unparseable timestamp", "value", s, "error", err)
		return time.Time{}
	}
	return t
}
