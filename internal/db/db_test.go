package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "nested", "punches.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestPutGetManifest(t *testing.T) {
	d := openTemp(t)
	ctx := context.Background()

	m, err := d.Manifest(ctx)
	if err != nil {
		t.Fatalf("Manifest on empty db: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("Manifest = %v, want empty", m)
	}

	rows := []Row{
		{ID: "a", Updated: 1, Data: []byte(`{"id":"a","updated":1}`)},
		{ID: "b", Updated: 2, Data: []byte(`{"id":"b","updated":2}`)},
	}
	if err := d.Put(ctx, rows); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Put(ctx, []Row{{ID: "a", Updated: 3, Data: []byte(`{"id":"a","updated":3}`)}}); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	m, err = d.Manifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]int64{"a": 3, "b": 2}, m); diff != "" {
		t.Errorf("Manifest mismatch (-want +got):\n%s", diff)
	}

	got, err := d.Get(ctx, []string{"a", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Row{{ID: "a", Updated: 3, Data: []byte(`{"id":"a","updated":3}`)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestState(t *testing.T) {
	d := openTemp(t)
	ctx := context.Background()

	v, err := d.State(ctx, "last_sync")
	if err != nil || v != "" {
		t.Fatalf("State on missing key = %q, %v", v, err)
	}
	if err := d.SetState(ctx, "last_sync", "42"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetState(ctx, "last_sync", "43"); err != nil {
		t.Fatal(err)
	}
	v, err = d.State(ctx, "last_sync")
	if err != nil || v != "43" {
		t.Errorf("State = %q, %v, want 43", v, err)
	}
}
