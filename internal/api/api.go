// Package api holds the JSON bodies exchanged between punch and punch-server.
package api

import (
	"encoding/json"
	"time"
)

// Version prefix of every API route.
const Prefix = "/api/v1"

// Credentials is the body of register and login requests.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Session is returned by register and login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// Me describes the logged in user.
type Me struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ManifestResponse is returned by GET /manifest.
type ManifestResponse struct {
	Manifest map[string]int64 `json:"manifest"`
}

// Punch is one document on the wire. Data is the raw punch JSON.
type Punch struct {
	ID      string          `json:"id"`
	Updated int64           `json:"updated"`
	Data    json.RawMessage `json:"data"`
}

// UploadRequest is the body of POST /punches.
type UploadRequest struct {
	Punches []Punch `json:"punches"`
}

// Accepted is the canonical stamp the server gave an uploaded punch.
type Accepted struct {
	ID      string `json:"id"`
	Updated int64  `json:"updated"`
}

// Rejected is an uploaded punch the server refused.
type Rejected struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// UploadResponse is returned by POST /punches.
type UploadResponse struct {
	Accepted []Accepted `json:"accepted"`
	Failed   []Rejected `json:"failed"`
}

// FetchRequest is the body of POST /punches/fetch.
type FetchRequest struct {
	IDs []string `json:"ids"`
}

// FetchResponse is returned by POST /punches/fetch.
type FetchResponse struct {
	Punches []Punch  `json:"punches"`
	Missing []string `json:"missing"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}
