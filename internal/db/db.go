// Package db is a SQLite file that mirrors punches. It backs the sqlite
// remote, so a punch database on a shared drive can act as a sync target.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens or creates the SQLite database
func Open(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Several punch clients may share one file
	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{DB: sqlDB}

	// Run migrations
	if err := db.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Row is one stored punch.
type Row struct {
	ID      string
	Updated int64
	Data    []byte
}

// Manifest returns id → updated for every stored punch.
func (db *DB) Manifest(ctx context.Context) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, updated FROM punches`)
	if err != nil {
		return nil, fmt.Errorf("failed to query manifest: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	manifest := map[string]int64{}
	for rows.Next() {
		var id string
		var updated int64
		if err := rows.Scan(&id, &updated); err != nil {
			return nil, err
		}
		manifest[id] = updated
	}
	return manifest, rows.Err()
}

// Put inserts or replaces punches in one transaction.
func (db *DB) Put(ctx context.Context, rows []Row) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO punches (id, updated, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated = excluded.updated, data = excluded.data
	`)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Updated, string(r.Data)); err != nil {
			return fmt.Errorf("failed to store punch %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns the stored punches among ids. Unknown ids are left out.
func (db *DB) Get(ctx context.Context, ids []string) ([]Row, error) {
	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		var r Row
		var data string
		err := db.QueryRowContext(ctx, `SELECT id, updated, data FROM punches WHERE id = ?`, id).
			Scan(&r.ID, &r.Updated, &data)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load punch %s: %w", id, err)
		}
		r.Data = []byte(data)
		out = append(out, r)
	}
	return out, nil
}

// State returns a value from the sync_state table.
func (db *DB) State(ctx context.Context, key string) (string, error) {
	var v sql.NullString
	err := db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v.String, nil
}

// SetState stores a value in the sync_state table.
func (db *DB) SetState(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
