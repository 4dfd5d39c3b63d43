// Package store persists processed flight-log records in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opensync-io/opensync/internal/models"
)

// ErrNotFound is returned when no record has the requested name.
var ErrNotFound = errors.New("record not found")

const schema = `CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	name TEXT NOT NULL UNIQUE,
	data TEXT NOT NULL,
	processed_at DATETIME NOT NULL
)`

// SQLite is a record store backed by a single database file.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; the engine owns the store.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// FindByName returns the log record with the given display name.
func (s *SQLite) FindByName(ctx context.Context, name string) (*models.ProcessedRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE type = ? AND name = ?`, models.RecordTypeLog, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return decode(data)
}

// Insert adds a new record. Inserting a name that already exists fails.
func (s *SQLite) Insert(ctx context.Context, rec *models.ProcessedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, type, name, data, processed_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Type, rec.DisplayName, string(data), rec.ProcessedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", rec.DisplayName, err)
	}
	return nil
}

// Update replaces the record stored under name. The stored ID is kept.
func (s *SQLite) Update(ctx context.Context, rec *models.ProcessedRecord, name string) error {
	existing, err := s.FindByName(ctx, name)
	if err != nil {
		return err
	}
	rec.ID = existing.ID

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE records SET type = ?, name = ?, data = ?, processed_at = ? WHERE id = ?`,
		rec.Type, rec.DisplayName, string(data), rec.ProcessedAt.UTC().Format(time.RFC3339Nano), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}
	return nil
}

// List returns all records, most recently processed first.
func (s *SQLite) List(ctx context.Context) ([]*models.ProcessedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM records ORDER BY processed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*models.ProcessedRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decode(data string) (*models.ProcessedRecord, error) {
	var rec models.ProcessedRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
