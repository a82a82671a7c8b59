package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/existflow/punch/internal/model"
	"github.com/existflow/punch/internal/record"
	"github.com/existflow/punch/internal/store"
)

func newStore(t *testing.T) (*store.Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return store.New(fs, "/data/punches"), fs
}

func TestListAllEmpty(t *testing.T) {
	s, _ := newStore(t)
	records, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll on missing dir: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("ListAll = %d records, want 0", len(records))
	}
}

func TestWriteAndRead(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	data := []byte(`{"id":"a","project":"acme","updated":100,"extra":{"keep":true}}`)
	if err := s.Write(ctx, record.Record{ID: "a", Updated: 100, Data: data}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rec, err := s.Read(ctx, "a")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec.Updated != 100 {
		t.Errorf("Updated = %d, want 100", rec.Updated)
	}
	if string(rec.Data) != string(data) {
		t.Errorf("Data = %s, want %s", rec.Data, data)
	}
}

func TestReadNotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Read(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Read error = %v, want ErrNotFound", err)
	}
}

func TestWriteRejectsMismatchedID(t *testing.T) {
	s, _ := newStore(t)
	err := s.Write(context.Background(), record.Record{ID: "a", Data: []byte(`{"id":"b"}`)})
	if err == nil {
		t.Fatal("expected error writing mismatched id")
	}
}

func TestWriteRejectsPathIDs(t *testing.T) {
	s, _ := newStore(t)
	for _, id := range []string{"", "../x", "a/b", ".hidden"} {
		err := s.Write(context.Background(), record.Record{ID: id, Data: []byte(`{"id":"` + id + `"}`)})
		if !errors.Is(err, store.ErrInvalidID) {
			t.Errorf("Write(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestListAllSurfacesCorruptFiles(t *testing.T) {
	s, fs := newStore(t)
	ctx := context.Background()

	if err := s.Write(ctx, record.Record{ID: "good", Data: []byte(`{"id":"good","updated":5}`)}); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/data/punches/bad.json", []byte("{bad json"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/data/punches/notes.txt", []byte("ignored"), 0600); err != nil {
		t.Fatal(err)
	}

	records, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListAll = %d records, want 2", len(records))
	}
	if records[0].ID != "bad" || records[0].Readable() {
		t.Errorf("records[0] = %+v, want unreadable bad", records[0])
	}
	if !errors.Is(records[0].Err, store.ErrCorrupt) {
		t.Errorf("records[0].Err = %v, want ErrCorrupt", records[0].Err)
	}
	if records[1].ID != "good" || !records[1].Readable() || records[1].Updated != 5 {
		t.Errorf("records[1] = %+v, want readable good@5", records[1])
	}
}

func TestWriteBacksUpCorruptFile(t *testing.T) {
	s, fs := newStore(t)
	ctx := context.Background()

	if err := afero.WriteFile(fs, "/data/punches/x.json", []byte("{bad"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, record.Record{ID: "x", Data: []byte(`{"id":"x","updated":9}`)}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	backup, err := afero.ReadFile(fs, "/data/punches/x.json.corrupt")
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if string(backup) != "{bad" {
		t.Errorf("backup = %q, want original bytes", backup)
	}
	if exists, _ := afero.Exists(fs, "/data/punches/x.json.tmp"); exists {
		t.Error("temp file left behind")
	}
}

func TestSavePunchBumpsUpdated(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	p := model.NewPunch("acme", now.Add(-time.Hour))
	if err := s.SavePunch(ctx, &p); err != nil {
		t.Fatalf("SavePunch: %v", err)
	}
	if p.Updated != now.UnixMilli() {
		t.Errorf("Updated = %d, want %d", p.Updated, now.UnixMilli())
	}

	loaded, err := s.LoadPunch(ctx, p.ID)
	if err != nil {
		t.Fatalf("LoadPunch: %v", err)
	}
	if loaded.Project != "acme" || loaded.Updated != now.UnixMilli() {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSavePunchWithSlowClockStillBumpsUpdated(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	remoteStamp := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC).UnixMilli()

	// A punch written by another machine whose clock is ahead of ours.
	data := []byte(fmt.Sprintf(`{"id":"p1","project":"acme","in":"2026-10-19T08:00:00Z","out":null,"comments":[],"updated":%d}`, remoteStamp))
	if err := s.Write(ctx, record.Record{ID: "p1", Updated: remoteStamp, Data: data}); err != nil {
		t.Fatal(err)
	}

	s.SetClock(func() time.Time { return time.UnixMilli(remoteStamp).Add(-4 * time.Minute) })
	p, err := s.LoadPunch(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	p.PunchOut(time.UnixMilli(remoteStamp))
	if err := s.SavePunch(ctx, &p); err != nil {
		t.Fatalf("SavePunch: %v", err)
	}

	rec, err := s.Read(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Updated <= remoteStamp {
		t.Errorf("Updated = %d, want greater than %d", rec.Updated, remoteStamp)
	}
}

func TestFindByIDPrefix(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	in := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"abc12345-one", "abc99999-two", "def00000-three"} {
		p := model.NewPunch("acme", in)
		p.ID = id
		if err := s.SavePunch(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}

	p, err := s.Find(ctx, "def00000-three")
	if err != nil || p.ID != "def00000-three" {
		t.Errorf("Find(full id) = %q, %v", p.ID, err)
	}
	p, err = s.Find(ctx, "abc1")
	if err != nil || p.ID != "abc12345-one" {
		t.Errorf("Find(prefix) = %q, %v", p.ID, err)
	}
	if _, err := s.Find(ctx, "abc"); !errors.Is(err, store.ErrAmbiguousID) {
		t.Errorf("Find(ambiguous) error = %v, want ErrAmbiguousID", err)
	}
	if _, err := s.Find(ctx, "zzz"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Find(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCurrentAndMostRecent(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	current, err := s.Current(ctx)
	if err != nil || current != nil {
		t.Fatalf("Current on empty store = %v, %v", current, err)
	}

	first := model.NewPunch("acme", base)
	first.PunchOut(base.Add(time.Hour))
	second := model.NewPunch("globex", base.Add(2*time.Hour))
	for _, p := range []*model.Punch{&first, &second} {
		if err := s.SavePunch(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	current, err = s.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current == nil || current.ID != second.ID {
		t.Errorf("Current = %v, want %s", current, second.ID)
	}

	recent, err := s.MostRecent(ctx)
	if err != nil {
		t.Fatalf("MostRecent: %v", err)
	}
	if recent == nil || recent.ID != second.ID {
		t.Errorf("MostRecent = %v, want %s", recent, second.ID)
	}
}

func TestByProjectAndPurge(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	for i, project := range []string{"acme", "globex", "acme"} {
		p := model.NewPunch(project, base.Add(time.Duration(i)*time.Hour))
		if err := s.SavePunch(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}

	acme, err := s.ByProject(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(acme) != 2 {
		t.Fatalf("ByProject = %d, want 2", len(acme))
	}

	removed, err := s.Purge(ctx, acme)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 2 {
		t.Errorf("Purge removed %d, want 2", removed)
	}

	all, err := s.Punches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Project != "globex" {
		t.Errorf("remaining = %+v, want one globex punch", all)
	}
}

func TestBetween(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	yesterday := model.NewPunch("acme", day.Add(-20*time.Hour))
	yesterday.PunchOut(day.Add(-18 * time.Hour))
	today := model.NewPunch("acme", day.Add(9*time.Hour))
	for _, p := range []*model.Punch{&yesterday, &today} {
		if err := s.SavePunch(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Between(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != today.ID {
		t.Errorf("Between = %+v, want only today's punch", got)
	}
}
