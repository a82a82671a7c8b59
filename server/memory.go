package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/existflow/punch/internal/model"
)

// MemoryStore keeps everything in process memory. It backs tests and
// `punch-server --memory`.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]model.User // by id
	sessions map[string]model.Session
	punches  map[string]map[string]StoredPunch // user id → punch id
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    map[string]model.User{},
		sessions: map[string]model.Session{},
		punches:  map[string]map[string]StoredPunch{},
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateUser(ctx context.Context, username, email, passwordHash string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return model.User{}, ErrConflict
		}
	}
	u := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) UserByUsername(ctx context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *MemoryStore) UserByID(ctx context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, session model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	m.sessions[session.Token] = session
	return nil
}

func (m *MemoryStore) Session(ctx context.Context, token string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

func (m *MemoryStore) Manifest(ctx context.Context, userID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	manifest := map[string]int64{}
	for id, p := range m.punches[userID] {
		manifest[id] = p.Updated
	}
	return manifest, nil
}

func (m *MemoryStore) SavePunch(ctx context.Context, userID, id string, sent int64, data []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.punches[userID]
	if byID == nil {
		byID = map[string]StoredPunch{}
		m.punches[userID] = byID
	}

	existing, exists := byID[id]
	canonical, stamped, err := canonicalize(sent, existing.Updated, exists, data)
	if err != nil {
		return 0, err
	}
	byID[id] = StoredPunch{ID: id, Updated: canonical, Data: stamped}
	return canonical, nil
}

func (m *MemoryStore) Punches(ctx context.Context, userID string, ids []string) ([]StoredPunch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []StoredPunch
	for _, id := range ids {
		if p, ok := m.punches[userID][id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
