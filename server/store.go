package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/existflow/punch/internal/model"
	"github.com/existflow/punch/internal/record"
)

var (
	// ErrNotFound is returned by stores for a missing user or session.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("already exists")
)

// StoredPunch is a punch document as the server keeps it.
type StoredPunch struct {
	ID      string
	Updated int64
	Data    []byte
}

// Store is everything the server persists.
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)

	CreateSession(ctx context.Context, session model.Session) error
	Session(ctx context.Context, token string) (model.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Manifest returns id → updated for every punch of a user.
	Manifest(ctx context.Context, userID string) (map[string]int64, error)
	// SavePunch stores a punch under its canonical stamp and returns it.
	SavePunch(ctx context.Context, userID, id string, sent int64, data []byte) (int64, error)
	// Punches returns the stored punches among ids.
	Punches(ctx context.Context, userID string, ids []string) ([]StoredPunch, error)

	Close() error
}

// canonicalize picks the stamp a punch is stored under. Stamps for an id
// only ever move forward, so a client with a slow clock cannot hide an
// upload behind an older timestamp. The stored document carries the same
// stamp so downloads match the manifest.
func canonicalize(sent, stored int64, exists bool, data []byte) (int64, []byte, error) {
	canonical := sent
	if exists && canonical <= stored {
		canonical = stored + 1
	}

	rec, err := record.Parse(data)
	if err != nil {
		return 0, nil, err
	}
	if rec.Updated == canonical {
		return canonical, data, nil
	}
	stamped, err := record.SetUpdated(data, canonical)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to stamp punch: %w", err)
	}
	return canonical, stamped, nil
}
