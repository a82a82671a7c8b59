package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/existflow/punch/internal/api"
	"github.com/existflow/punch/internal/record"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewWithStore(NewMemoryStore())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func call(t *testing.T, s *Server, method, path, token string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code
}

func register(t *testing.T, s *Server, username string) api.Session {
	t.Helper()
	var session api.Session
	code := call(t, s, http.MethodPost, "/api/v1/register", "", api.Credentials{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter2hunter2",
	}, &session)
	if code != http.StatusOK {
		t.Fatalf("register status = %d", code)
	}
	return session
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	if code := call(t, s, http.MethodGet, "/health", "", nil, nil); code != http.StatusOK {
		t.Errorf("health = %d", code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	session := register(t, s, "ada")
	if session.Token == "" || session.UserID == "" {
		t.Fatalf("session = %+v", session)
	}

	tests := []struct {
		name  string
		path  string
		creds api.Credentials
		want  int
	}{
		{"duplicate", "/api/v1/register", api.Credentials{Username: "ada", Email: "other@example.com", Password: "longenough"}, http.StatusConflict},
		{"short password", "/api/v1/register", api.Credentials{Username: "bob", Email: "bob@example.com", Password: "short"}, http.StatusBadRequest},
		{"missing email", "/api/v1/register", api.Credentials{Username: "bob", Password: "longenough"}, http.StatusBadRequest},
		{"wrong password", "/api/v1/login", api.Credentials{Username: "ada", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", "/api/v1/login", api.Credentials{Username: "eve", Password: "hunter2hunter2"}, http.StatusUnauthorized},
		{"login", "/api/v1/login", api.Credentials{Username: "ada", Password: "hunter2hunter2"}, http.StatusOK},
	}
	for _, tt := range tests {
		if got := call(t, s, http.MethodPost, tt.path, "", tt.creds, nil); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, got, tt.want)
		}
	}

	var me api.Me
	if code := call(t, s, http.MethodGet, "/api/v1/me", session.Token, nil, &me); code != http.StatusOK {
		t.Fatalf("me = %d", code)
	}
	if me.Username != "ada" || me.UserID != session.UserID {
		t.Errorf("me = %+v", me)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	for _, token := range []string{"", "bogus"} {
		if code := call(t, s, http.MethodGet, "/api/v1/manifest", token, nil, nil); code != http.StatusUnauthorized {
			t.Errorf("manifest with token %q = %d, want 401", token, code)
		}
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	session := register(t, s, "ada")

	if code := call(t, s, http.MethodPost, "/api/v1/logout", session.Token, nil, nil); code != http.StatusOK {
		t.Fatalf("logout = %d", code)
	}
	if code := call(t, s, http.MethodGet, "/api/v1/me", session.Token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", code)
	}
}

func TestExpiredToken(t *testing.T) {
	s := newTestServer(t)
	session := register(t, s, "ada")

	s.now = func() time.Time { return time.Now().Add(sessionTTL + time.Hour) }
	if code := call(t, s, http.MethodGet, "/api/v1/me", session.Token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("me with expired token = %d, want 401", code)
	}
}

func punch(id string, updated int64) api.Punch {
	data, _ := json.Marshal(map[string]any{"id": id, "project": "acme", "updated": updated})
	return api.Punch{ID: id, Updated: updated, Data: data}
}

func TestUploadManifestFetch(t *testing.T) {
	s := newTestServer(t)
	token := register(t, s, "ada").Token

	var manifest api.ManifestResponse
	if code := call(t, s, http.MethodGet, "/api/v1/manifest", token, nil, &manifest); code != http.StatusOK {
		t.Fatalf("manifest = %d", code)
	}
	if len(manifest.Manifest) != 0 {
		t.Errorf("fresh manifest = %v", manifest.Manifest)
	}

	bad := api.Punch{ID: "c", Updated: 1, Data: json.RawMessage(`{"id":"other"}`)}
	var up api.UploadResponse
	code := call(t, s, http.MethodPost, "/api/v1/punches", token,
		api.UploadRequest{Punches: []api.Punch{punch("a", 100), punch("b", 200), bad}}, &up)
	if code != http.StatusOK {
		t.Fatalf("upload = %d", code)
	}
	if diff := cmp.Diff([]api.Accepted{{ID: "a", Updated: 100}, {ID: "b", Updated: 200}}, up.Accepted); diff != "" {
		t.Errorf("accepted mismatch (-want +got):\n%s", diff)
	}
	if len(up.Failed) != 1 || up.Failed[0].ID != "c" {
		t.Errorf("failed = %+v, want c", up.Failed)
	}

	// A stale clock cannot move a stamp backwards.
	code = call(t, s, http.MethodPost, "/api/v1/punches", token,
		api.UploadRequest{Punches: []api.Punch{punch("a", 50)}}, &up)
	if code != http.StatusOK {
		t.Fatalf("upload = %d", code)
	}
	if diff := cmp.Diff([]api.Accepted{{ID: "a", Updated: 101}}, up.Accepted); diff != "" {
		t.Errorf("accepted mismatch (-want +got):\n%s", diff)
	}

	call(t, s, http.MethodGet, "/api/v1/manifest", token, nil, &manifest)
	if diff := cmp.Diff(map[string]int64{"a": 101, "b": 200}, manifest.Manifest); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}

	var fetched api.FetchResponse
	code = call(t, s, http.MethodPost, "/api/v1/punches/fetch", token, api.FetchRequest{IDs: []string{"a", "zzz"}}, &fetched)
	if code != http.StatusOK {
		t.Fatalf("fetch = %d", code)
	}
	if len(fetched.Punches) != 1 {
		t.Fatalf("fetched %d punches, want 1", len(fetched.Punches))
	}
	rec, err := record.Parse(fetched.Punches[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Updated != 101 || fetched.Punches[0].Updated != 101 {
		t.Errorf("fetched a@%d (doc %d), want 101", fetched.Punches[0].Updated, rec.Updated)
	}
	if diff := cmp.Diff([]string{"zzz"}, fetched.Missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	s := newTestServer(t)
	ada := register(t, s, "ada").Token
	bob := register(t, s, "bob").Token

	call(t, s, http.MethodPost, "/api/v1/punches", ada, api.UploadRequest{Punches: []api.Punch{punch("a", 1)}}, nil)

	var manifest api.ManifestResponse
	call(t, s, http.MethodGet, "/api/v1/manifest", bob, nil, &manifest)
	if len(manifest.Manifest) != 0 {
		t.Errorf("bob sees %v", manifest.Manifest)
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name   string
		sent   int64
		stored int64
		exists bool
		want   int64
	}{
		{"new punch keeps sent", 100, 0, false, 100},
		{"newer than stored", 300, 200, true, 300},
		{"equal to stored", 200, 200, true, 201},
		{"older than stored", 100, 200, true, 201},
	}
	for _, tt := range tests {
		data := []byte(`{"id":"a","updated":` + jsonInt(tt.sent) + `,"keep":[1,2]}`)
		got, stamped, err := canonicalize(tt.sent, tt.stored, tt.exists, data)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: canonical = %d, want %d", tt.name, got, tt.want)
		}
		want := `{"id":"a","updated":` + jsonInt(tt.want) + `,"keep":[1,2]}`
		if string(stamped) != want {
			t.Errorf("%s: stamped = %s, want %s", tt.name, stamped, want)
		}
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
