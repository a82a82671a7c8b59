package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/existflow/punch/internal/db"
	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/record"
)

// SQLite is a remote stored in a single SQLite file.
type SQLite struct {
	db   *db.DB
	path string
}

// OpenSQLite opens or creates the punch database at path.
func OpenSQLite(path string) (*SQLite, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: d, path: path}, nil
}

func (s *SQLite) Manifest(ctx context.Context) (record.Manifest, error) {
	m, err := s.db.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	return record.Manifest(m), nil
}

// Upload stores the whole batch in one transaction.
func (s *SQLite) Upload(ctx context.Context, records []record.Record) (record.UploadResult, error) {
	result := record.UploadResult{Failed: map[string]error{}}

	rows := make([]db.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, db.Row{ID: rec.ID, Updated: rec.Updated, Data: rec.Data})
	}
	if err := s.db.Put(ctx, rows); err != nil {
		return result, fmt.Errorf("failed to store punches in %s: %w", s.path, err)
	}

	for _, rec := range records {
		result.Accepted = append(result.Accepted, record.Stamp{ID: rec.ID, Updated: rec.Updated})
	}
	if err := s.db.SetState(ctx, "last_upload", time.Now().UTC().Format(time.RFC3339)); err != nil {
		logger.Warn("Failed to record upload time", logger.F("path", s.path), logger.F("error", err))
	}
	return result, nil
}

func (s *SQLite) Download(ctx context.Context, ids []string) (record.DownloadResult, error) {
	result := record.DownloadResult{Failed: map[string]error{}}

	rows, err := s.db.Get(ctx, ids)
	if err != nil {
		return result, err
	}

	manifest := record.Manifest{}
	found := make(map[string][]byte, len(rows))
	for _, r := range rows {
		manifest[r.ID] = r.Updated
		found[r.ID] = r.Data
	}

	for _, id := range ids {
		data, ok := found[id]
		if !ok {
			result.Failed[id] = fmt.Errorf("%w: %s", ErrNotFound, id)
			continue
		}
		rec, err := conform(id, data, manifest)
		if err != nil {
			result.Failed[id] = err
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// LastUpload returns when punches were last stored, or the zero time.
func (s *SQLite) LastUpload(ctx context.Context) (time.Time, error) {
	v, err := s.db.State(ctx, "last_upload")
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

// Close closes the database file.
func (s *SQLite) Close() error {
	return s.db.Close()
}
