// Package record holds the types shared by the local store, the remotes and
// the reconciler. A Record is a punch seen only through its id, its
// last-modified stamp and its raw JSON document; everything else in the
// document is carried through untouched.
package record

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Record is a single punch as the sync layer sees it.
type Record struct {
	ID      string
	Updated int64  // epoch milliseconds
	Data    []byte // full JSON document

	// Err is set when the stored document could not be read or parsed.
	// Such a record still occupies its id but its Data is not trustworthy.
	Err error
}

// Readable reports whether the record parsed cleanly.
func (r Record) Readable() bool {
	return r.Err == nil
}

// Manifest maps record ids to the remote's last-known-synced timestamp.
type Manifest map[string]int64

// Stamp is the canonical timestamp a remote accepted for an uploaded record.
type Stamp struct {
	ID      string `json:"id"`
	Updated int64  `json:"updated"`
}

// UploadResult reports per-record outcomes of an upload batch.
type UploadResult struct {
	Accepted []Stamp
	Failed   map[string]error
}

// DownloadResult reports per-record outcomes of a download batch.
type DownloadResult struct {
	Records []Record
	Failed  map[string]error
}

var (
	ErrInvalidJSON = errors.New("invalid JSON document")
	ErrMissingID   = errors.New("document has no id")
)

// Parse extracts id and updated from a raw punch document.
// A document without an updated field is treated as never modified (0).
func Parse(data []byte) (Record, error) {
	if !gjson.ValidBytes(data) {
		return Record{}, ErrInvalidJSON
	}

	id := gjson.GetBytes(data, "id")
	if id.Type != gjson.String || id.Str == "" {
		return Record{}, ErrMissingID
	}

	var updated int64
	if u := gjson.GetBytes(data, "updated"); u.Exists() {
		if u.Type != gjson.Number {
			return Record{}, fmt.Errorf("record %s: updated is not a number", id.Str)
		}
		updated = u.Int()
	}

	return Record{ID: id.Str, Updated: updated, Data: data}, nil
}

// SetUpdated rewrites only the updated field of a document.
func SetUpdated(data []byte, updated int64) ([]byte, error) {
	out, err := sjson.SetBytes(data, "updated", updated)
	if err != nil {
		return nil, fmt.Errorf("failed to set updated: %w", err)
	}
	return out, nil
}

// WithUpdated returns a copy of r whose document and Updated field carry
// the given timestamp.
func (r Record) WithUpdated(updated int64) (Record, error) {
	data, err := SetUpdated(r.Data, updated)
	if err != nil {
		return Record{}, err
	}
	r.Data = data
	r.Updated = updated
	return r, nil
}

// IDs returns the ids of records in order.
func IDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
