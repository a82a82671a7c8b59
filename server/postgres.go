package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/existflow/punch/internal/model"
)

// PostgresStore keeps accounts and punches in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dbURL and runs migrations.
func OpenPostgres(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &PostgresStore{db: db}

	// Run migrations
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash string) (model.User, error) {
	u := model.User{Username: username, Email: email, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		username, email, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return model.User{}, ErrConflict
	}
	return u, err
}

func (s *PostgresStore) scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`,
		username))
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (model.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`,
		id))
}

func (s *PostgresStore) CreateSession(ctx context.Context, session model.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, token, expires_at)
		VALUES ($1, $2, $3)`,
		session.UserID, session.Token, session.ExpiresAt,
	)
	return err
}

func (s *PostgresStore) Session(ctx context.Context, token string) (model.Session, error) {
	var session model.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, token, expires_at, created_at FROM sessions WHERE token = $1`,
		token,
	).Scan(&session.UserID, &session.Token, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session, ErrNotFound
	}
	return session, err
}

func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (s *PostgresStore) Manifest(ctx context.Context, userID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, updated FROM punches WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
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

// SavePunch locks the existing row so concurrent uploads of one id are
// stamped in order.
func (s *PostgresStore) SavePunch(ctx context.Context, userID, id string, sent int64, data []byte) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var stored int64
	exists := true
	err = tx.QueryRowContext(ctx, `
		SELECT updated FROM punches WHERE user_id = $1 AND id = $2 FOR UPDATE`,
		userID, id,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return 0, err
	}

	canonical, stamped, err := canonicalize(sent, stored, exists, data)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO punches (user_id, id, updated, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, id) DO UPDATE
		SET updated = EXCLUDED.updated, data = EXCLUDED.data, synced_at = NOW()`,
		userID, id, canonical, string(stamped),
	)
	if err != nil {
		return 0, err
	}
	return canonical, tx.Commit()
}

func (s *PostgresStore) Punches(ctx context.Context, userID string, ids []string) ([]StoredPunch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, updated, data FROM punches
		WHERE user_id = $1 AND id = ANY($2)
		ORDER BY id`,
		userID, pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []StoredPunch
	for rows.Next() {
		var p StoredPunch
		var data string
		if err := rows.Scan(&p.ID, &p.Updated, &data); err != nil {
			return nil, err
		}
		p.Data = []byte(data)
		out = append(out, p)
	}
	return out, rows.Err()
}
