// Package store keeps punches on disk, one JSON document per punch under
// <home>/punches/<id>.json. It is the local side of every sync pass.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/existflow/punch/internal/record"
)

var (
	// ErrNotFound is returned when no punch file exists for an id.
	ErrNotFound = errors.New("punch not found")
	// ErrCorrupt is returned when a punch file exists but cannot be parsed.
	ErrCorrupt = errors.New("punch file is corrupt")
	// ErrInvalidID is returned for ids that cannot be used as file names.
	ErrInvalidID = errors.New("invalid punch id")
)

const ext = ".json"

// Store is a directory of punch files on an afero filesystem.
type Store struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// New creates a store rooted at dir on fs.
func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, root: dir, now: time.Now}
}

// Open opens the store under home on the OS filesystem, creating it if needed.
func Open(home string) (*Store, error) {
	dir := filepath.Join(home, "punches")
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create punch directory: %w", err)
	}
	return New(fs, dir), nil
}

// SetClock replaces the clock used to stamp local writes.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Dir returns the directory holding punch files.
func (s *Store) Dir() string {
	return s.root
}

func (s *Store) path(id string) (string, error) {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.root, id+ext), nil
}

// ListAll returns every punch in the store, sorted by id. Files that fail
// to parse are returned with Err set instead of failing the listing.
func (s *Store) ListAll(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, s.root)
	if os.IsNotExist(err) {
		return []record.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	records := make([]record.Record, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, ext) || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		rec, err := s.load(id, filepath.Join(s.root, name))
		if err != nil && !errors.Is(err, ErrCorrupt) {
			rec = record.Record{ID: id, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Read returns the current on-disk content of a punch. A corrupt file
// yields a record with Err set and an error wrapping ErrCorrupt.
func (s *Store) Read(ctx context.Context, id string) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, err
	}
	path, err := s.path(id)
	if err != nil {
		return record.Record{}, err
	}
	return s.load(id, path)
}

func (s *Store) load(id, path string) (record.Record, error) {
	data, err := afero.ReadFile(s.fs, path)
	if os.IsNotExist(err) {
		return record.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rec, err := record.Parse(data)
	if err == nil && rec.ID != id {
		err = fmt.Errorf("file %s holds id %q", path, rec.ID)
	}
	if err != nil {
		cerr := fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
		return record.Record{ID: id, Err: cerr}, cerr
	}
	return rec, nil
}

// Write stores a record's document as-is. It never changes updated; local
// edits that must bump the stamp go through SavePunch.
func (s *Store) Write(ctx context.Context, rec record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(rec.ID)
	if err != nil {
		return err
	}

	parsed, err := record.Parse(rec.Data)
	if err != nil {
		return fmt.Errorf("refusing to write %s: %w", rec.ID, err)
	}
	if parsed.ID != rec.ID {
		return fmt.Errorf("refusing to write %s: document holds id %q", rec.ID, parsed.ID)
	}

	if err := s.fs.MkdirAll(s.root, 0700); err != nil {
		return fmt.Errorf("failed to create punch directory: %w", err)
	}

	// Keep a copy of a corrupt file before it is replaced.
	if old, err := afero.ReadFile(s.fs, path); err == nil {
		if _, perr := record.Parse(old); perr != nil {
			_ = afero.WriteFile(s.fs, path+".corrupt", old, 0600)
		}
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmpPath, rec.Data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Delete removes a punch file.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}
