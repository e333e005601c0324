package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle and exposes the document and version
// helpers used by the room coordinator.
type Store struct {
	db *sql.DB
}

// Document is the mutable "live" text of a room, keyed by room id.
type Document struct {
	RoomID    string
	Code      string
	UpdatedAt time.Time
}

// DocumentVersion is one immutable, timestamped snapshot of a room's text.
// Rows are only ever inserted, never updated or deleted.
type DocumentVersion struct {
	ID        string
	RoomID    string
	Code      string
	SavedBy   string
	CreatedAt time.Time
}

// ErrVersionNotFound is returned when a restore names an unknown version id.
var ErrVersionNotFound = errors.New("version not found")

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "coderoom.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			room_id TEXT PRIMARY KEY,
			code TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS document_versions (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			code TEXT NOT NULL,
			saved_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_versions_room_created
			ON document_versions(room_id, created_at);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FindDocument fetches the live document for a room. A missing row is not
// an error: it returns (nil, nil) so callers can default to empty text.
func (s *Store) FindDocument(ctx context.Context, roomID string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT room_id, code, updated_at FROM documents WHERE room_id = ?`, roomID)
	var doc Document
	if err := row.Scan(&doc.RoomID, &doc.Code, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// UpsertDocument writes the live text for a room, inserting or replacing by
// room id and refreshing the update timestamp. Idempotent by room id.
func (s *Store) UpsertDocument(ctx context.Context, roomID, code string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents(room_id, code, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET code = excluded.code, updated_at = excluded.updated_at
	`, roomID, code, time.Now().UTC())
	return err
}

// InsertVersion appends an immutable snapshot row and returns its id.
func (s *Store) InsertVersion(ctx context.Context, roomID, code, savedBy string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_versions(id, room_id, code, saved_by, created_at) VALUES(?, ?, ?, ?, ?)`,
		id, roomID, code, savedBy, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListVersions returns all snapshots for a room, newest first.
func (s *Store) ListVersions(ctx context.Context, roomID string) ([]DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, code, saved_by, created_at
		FROM document_versions
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []DocumentVersion
	for rows.Next() {
		var v DocumentVersion
		if err := rows.Scan(&v.ID, &v.RoomID, &v.Code, &v.SavedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// GetVersion fetches a single snapshot by id.
func (s *Store) GetVersion(ctx context.Context, id string) (*DocumentVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, room_id, code, saved_by, created_at FROM document_versions WHERE id = ?`, id)
	var v DocumentVersion
	if err := row.Scan(&v.ID, &v.RoomID, &v.Code, &v.SavedBy, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return &v, nil
}
