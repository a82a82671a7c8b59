package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/existflow/punch/internal/config"
	"github.com/existflow/punch/internal/record"
)

func punch(id string, updated int64) record.Record {
	return record.Record{
		ID:      id,
		Updated: updated,
		Data:    []byte(fmt.Sprintf(`{"id":%q,"project":"acme","updated":%d}`, id, updated)),
	}
}

// exercise runs the same contract checks against any remote.
func exercise(t *testing.T, r Remote) {
	t.Helper()
	ctx := context.Background()

	m, err := r.Manifest(ctx)
	if err != nil {
		t.Fatalf("Manifest on fresh remote: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("Manifest = %v, want empty", m)
	}

	up, err := r.Upload(ctx, []record.Record{punch("a", 10), punch("b", 20)})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(up.Failed) != 0 {
		t.Fatalf("Upload failures: %v", up.Failed)
	}
	want := []record.Stamp{{ID: "a", Updated: 10}, {ID: "b", Updated: 20}}
	if diff := cmp.Diff(want, up.Accepted); diff != "" {
		t.Errorf("Accepted mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.Upload(ctx, []record.Record{punch("a", 30)}); err != nil {
		t.Fatalf("second Upload: %v", err)
	}

	m, err = r.Manifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(record.Manifest{"a": 30, "b": 20}, m); diff != "" {
		t.Errorf("Manifest mismatch (-want +got):\n%s", diff)
	}

	down, err := r.Download(ctx, []string{"a", "missing"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(down.Records) != 1 {
		t.Fatalf("Download returned %d records, want 1", len(down.Records))
	}
	got := down.Records[0]
	if got.ID != "a" || got.Updated != 30 || string(got.Data) != string(punch("a", 30).Data) {
		t.Errorf("downloaded %s@%d %s", got.ID, got.Updated, got.Data)
	}
	if _, ok := down.Failed["missing"]; !ok {
		t.Errorf("Failed = %v, want missing", down.Failed)
	}
}

func TestDirRemote(t *testing.T) {
	fs := afero.NewMemMapFs()
	exercise(t, NewDir(fs, "/share/punch"))

	for _, p := range []string{"/share/punch/punchmanifest.json", "/share/punch/punches/a.json"} {
		if ok, _ := afero.Exists(fs, p); !ok {
			t.Errorf("%s not written", p)
		}
	}
}

func TestDirRemoteInvalidManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/r/punchmanifest.json", []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDir(fs, "/r").Manifest(context.Background()); err == nil {
		t.Error("expected error for invalid manifest")
	}
}

func TestBucketDownloadAlignsStampWithManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := NewDir(fs, "/r")
	if err := afero.WriteFile(fs, "/r/punchmanifest.json", []byte(`{"a":99}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/r/punches/a.json", punch("a", 5).Data, 0600); err != nil {
		t.Fatal(err)
	}

	down, err := b.Download(context.Background(), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(down.Records) != 1 || down.Records[0].Updated != 99 {
		t.Fatalf("records = %+v, want a@99", down.Records)
	}
	parsed, err := record.Parse(down.Records[0].Data)
	if err != nil || parsed.Updated != 99 {
		t.Errorf("document updated = %d, %v, want 99", parsed.Updated, err)
	}
}

func TestSQLiteRemote(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "punches.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = s.Close() }()

	exercise(t, s)

	last, err := s.LastUpload(context.Background())
	if err != nil || last.IsZero() {
		t.Errorf("LastUpload = %v, %v, want a time", last, err)
	}
}

func TestSealedRemote(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatal(err)
	}
	fs := afero.NewMemMapFs()
	inner := NewDir(fs, "/vault")
	sealed := NewSealed(inner, NewCrypto("correct horse", salt))

	exercise(t, sealed)

	raw, err := afero.ReadFile(fs, "/vault/punches/a.json")
	if err != nil {
		t.Fatal(err)
	}
	if parsed, err := record.Parse(raw); err != nil || parsed.Updated != 30 {
		t.Errorf("envelope = %s, want readable id and updated", raw)
	}
	if string(raw) == string(punch("a", 30).Data) {
		t.Error("punch stored in plaintext")
	}

	wrong := NewSealed(inner, NewCrypto("wrong", salt))
	down, err := wrong.Download(context.Background(), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(down.Failed["a"], ErrDecrypt) {
		t.Errorf("Failed[a] = %v, want ErrDecrypt", down.Failed["a"])
	}
}

func TestCryptoFingerprintStable(t *testing.T) {
	salt := []byte("0123456789abcdef")
	a := NewCrypto("pass", salt).Fingerprint()
	b := NewCrypto("pass", salt).Fingerprint()
	c := NewCrypto("other", salt).Fingerprint()
	if a != b || a == c || len(a) != 16 {
		t.Errorf("fingerprints = %q %q %q", a, b, c)
	}
}

func TestLoadCredentialsFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"accessKeyId":"AK","secretAccessKey":"SK"}`), 0600); err != nil {
		t.Fatal(err)
	}
	c, err := loadCredentialsFile(good)
	if err != nil {
		t.Fatalf("loadCredentialsFile: %v", err)
	}
	if c.AccessKeyID != "AK" || c.SecretAccessKey != "SK" {
		t.Errorf("credentials = %+v", c)
	}

	partial := filepath.Join(dir, "partial.json")
	if err := os.WriteFile(partial, []byte(`{"accessKeyId":"AK"}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadCredentialsFile(partial); err == nil {
		t.Error("expected error for missing secret")
	}
}

func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(S3Options{}); err == nil {
		t.Error("expected error without bucket")
	}
	b, err := NewS3(S3Options{Bucket: "punches", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if b.name != "s3://punches" {
		t.Errorf("name = %q", b.name)
	}
}

func TestOpenDispatch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	ctx := context.Background()

	r, err := Open(ctx, config.Remote{Name: "share", Type: config.RemoteDir, Path: filepath.Join(dir, "share")}, Options{Config: cfg})
	if err != nil {
		t.Fatalf("Open dir: %v", err)
	}
	if _, ok := r.(*Bucket); !ok {
		t.Errorf("dir remote is %T", r)
	}

	r, err = Open(ctx, config.Remote{Name: "db", Type: config.RemoteSQLite, Path: filepath.Join(dir, "p.db")}, Options{Config: cfg})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	closeQuietly(r)

	_, err = Open(ctx, config.Remote{Name: "srv", Type: config.RemoteHTTP, URL: "http://localhost:1"}, Options{Config: cfg, Auth: &config.Auth{Remotes: map[string]config.Credentials{}}})
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Open http without token = %v, want ErrNotLoggedIn", err)
	}

	if _, err := Open(ctx, config.Remote{Name: "x", Type: "ftp"}, Options{Config: cfg}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestOpenSealedUsesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	r := config.Remote{
		Name:           "vault",
		Type:           config.RemoteDir,
		Path:           t.TempDir(),
		EncryptionSalt: "MDEyMzQ1Njc4OWFiY2RlZg==",
	}

	asked := 0
	got, err := Open(context.Background(), r, Options{Passphrase: func(config.Remote) (string, error) {
		asked++
		return "secret", nil
	}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := got.(*Sealed); !ok || asked != 1 {
		t.Errorf("got %T after %d prompts, want *Sealed after 1", got, asked)
	}

	if _, err := Open(context.Background(), r, Options{}); err == nil {
		t.Error("expected error without passphrase")
	}
}
