package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/existflow/punch/internal/api"
	"github.com/existflow/punch/internal/record"
	"github.com/existflow/punch/server"
)

func startServer(t *testing.T) string {
	t.Helper()
	srv := server.NewWithStore(server.NewMemoryStore())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestHTTPRemote(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	session, err := Register(ctx, url, api.Credentials{Username: "ada", Email: "ada@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewHTTP(url, session.Token)
	exercise(t, c)

	me, err := c.Me(ctx)
	if err != nil || me.Username != "ada" {
		t.Errorf("Me = %+v, %v", me, err)
	}

	if _, err := Login(ctx, url, api.Credentials{Username: "ada", Password: "wrong"}); err == nil {
		t.Error("Login with wrong password succeeded")
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := c.Manifest(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Manifest after logout = %v, want ErrNotLoggedIn", err)
	}
}

func TestHTTPRemoteCanonicalStamp(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	session, err := Register(ctx, url, api.Credentials{Username: "ada", Email: "ada@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatal(err)
	}
	c := NewHTTP(url, session.Token)

	if _, err := c.Upload(ctx, []record.Record{punch("a", 500)}); err != nil {
		t.Fatal(err)
	}
	up, err := c.Upload(ctx, []record.Record{punch("a", 400)})
	if err != nil {
		t.Fatal(err)
	}
	if len(up.Accepted) != 1 || up.Accepted[0].Updated != 501 {
		t.Errorf("accepted = %+v, want a@501", up.Accepted)
	}

	down, err := c.Download(ctx, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(down.Records) != 1 || down.Records[0].Updated != 501 {
		t.Errorf("downloaded = %+v, want a@501", down.Records)
	}
}

func TestHTTPRemoteUnreachable(t *testing.T) {
	c := NewHTTP("http://127.0.0.1:1", "token")
	if _, err := c.Manifest(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}
