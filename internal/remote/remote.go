// Package remote holds the places punches can be synced to. Every remote
// answers the same three questions: which punches do you have, store
// these, and give me those.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/record"
)

var (
	// ErrNotFound is returned by object backends for a missing key.
	ErrNotFound = errors.New("object not found")
	// ErrNotLoggedIn is returned when an http remote has no token.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Remote is the capability every backend provides.
type Remote interface {
	Manifest(ctx context.Context) (record.Manifest, error)
	Upload(ctx context.Context, records []record.Record) (record.UploadResult, error)
	Download(ctx context.Context, ids []string) (record.DownloadResult, error)
}

const (
	manifestKey = "punchmanifest.json"
	punchPrefix = "punches"
)

// objects is a flat key/value blob store.
type objects interface {
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, data []byte) error
}

// Bucket keeps punches as one object per punch plus a manifest object:
//
//	punchmanifest.json
//	punches/<id>.json
//
// The same layout is used on a local directory and on S3.
type Bucket struct {
	objects objects
	name    string
}

func punchKey(id string) string {
	return path.Join(punchPrefix, id+".json")
}

// Manifest reads the manifest object. A missing manifest is empty.
func (b *Bucket) Manifest(ctx context.Context) (record.Manifest, error) {
	data, err := b.objects.get(ctx, manifestKey)
	if errors.Is(err, ErrNotFound) {
		return record.Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest from %s: %w", b.name, err)
	}

	manifest := record.Manifest{}
	if len(data) == 0 {
		return manifest, nil
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest in %s: %w", b.name, err)
	}
	return manifest, nil
}

// Upload writes each punch object, then the merged manifest. Punches are
// accepted with the stamp they were sent with.
func (b *Bucket) Upload(ctx context.Context, records []record.Record) (record.UploadResult, error) {
	result := record.UploadResult{Failed: map[string]error{}}

	manifest, err := b.Manifest(ctx)
	if err != nil {
		return result, err
	}

	var accepted []record.Stamp
	for _, rec := range records {
		if err := b.objects.put(ctx, punchKey(rec.ID), rec.Data); err != nil {
			logger.Warn("Failed to upload punch", logger.F("remote", b.name), logger.F("id", rec.ID), logger.F("error", err))
			result.Failed[rec.ID] = err
			continue
		}
		manifest[rec.ID] = rec.Updated
		accepted = append(accepted, record.Stamp{ID: rec.ID, Updated: rec.Updated})
	}
	if len(accepted) == 0 {
		return result, nil
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return result, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := b.objects.put(ctx, manifestKey, data); err != nil {
		return result, fmt.Errorf("failed to write manifest to %s: %w", b.name, err)
	}

	result.Accepted = accepted
	return result, nil
}

// Download reads punch objects. Each returned document carries the
// manifest's stamp.
func (b *Bucket) Download(ctx context.Context, ids []string) (record.DownloadResult, error) {
	result := record.DownloadResult{Failed: map[string]error{}}

	manifest, err := b.Manifest(ctx)
	if err != nil {
		return result, err
	}

	for _, id := range ids {
		data, err := b.objects.get(ctx, punchKey(id))
		if err != nil {
			result.Failed[id] = err
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

// conform parses a stored document and aligns its updated field with the
// manifest, which is authoritative for what the remote last accepted.
func conform(id string, data []byte, manifest record.Manifest) (record.Record, error) {
	rec, err := record.Parse(data)
	if err != nil {
		return record.Record{}, err
	}
	if rec.ID != id {
		return record.Record{}, fmt.Errorf("object for %s holds id %q", id, rec.ID)
	}
	if want, ok := manifest[id]; ok && want != rec.Updated {
		return rec.WithUpdated(want)
	}
	return rec, nil
}
