package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
user:
  name: Ada
projects:
  acme:
    name: ACME Corp
    client: acme
    hourly_rate: 80
sync:
  auto_sync: true
  remotes:
    - name: backup
      type: dir
      path: remotes/backup
    - name: cloud
      type: s3
      bucket: punches
      credentials_file: s3.json
`

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Display.TimeFormat == "" {
		t.Error("expected default time format")
	}
	if len(cfg.Sync.Remotes) != 0 {
		t.Errorf("remotes = %d, want 0", len(cfg.Sync.Remotes))
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !cfg.Sync.AutoSync {
		t.Error("auto_sync not loaded")
	}
	if got := cfg.ProjectLabel("acme"); got != "ACME Corp" {
		t.Errorf("ProjectLabel = %q", got)
	}
	if got := cfg.ProjectLabel("other"); got != "other" {
		t.Errorf("ProjectLabel(other) = %q", got)
	}
	if got := cfg.HourlyRate("acme"); got != 80 {
		t.Errorf("HourlyRate = %v", got)
	}

	r, ok := cfg.Remote("backup")
	if !ok {
		t.Fatal("remote backup not found")
	}
	if got := cfg.ResolvePath(r.Path); got != filepath.Join(dir, "remotes", "backup") {
		t.Errorf("ResolvePath = %q", got)
	}
	if got := cfg.ResolvePath("/abs/path"); got != "/abs/path" {
		t.Errorf("ResolvePath(abs) = %q", got)
	}

	cloud, _ := cfg.Remote("cloud")
	if got := cloud.DisplayName(); got != "S3 (punches)" {
		t.Errorf("DisplayName = %q", got)
	}

	if problems := cfg.Validate(); HasErrors(problems) {
		t.Errorf("unexpected validation errors: %v", problems)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Sync.Remotes = append(cfg.Sync.Remotes, Remote{Name: "home", Type: RemoteSQLite, Path: "home.db"})
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	r, ok := loaded.Remote("home")
	if !ok || r.Type != RemoteSQLite || r.Path != "home.db" {
		t.Errorf("remote after round trip = %+v", r)
	}

	r.EncryptionSalt = "c2FsdA=="
	if !loaded.SetRemote(r) {
		t.Fatal("SetRemote did not find remote")
	}
	if got, _ := loaded.Remote("home"); got.EncryptionSalt != "c2FsdA==" {
		t.Error("SetRemote did not replace remote")
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	t.Setenv("PUNCH_LOG_LEVEL", "DEBUG")
	t.Setenv("PUNCH_LOG_CONSOLE", "true")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("user:\n  name: Ada\nlog_level: ERROR\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
	if !cfg.LogConsole {
		t.Error("LogConsole should be true")
	}
}

func TestHomeFromEnv(t *testing.T) {
	t.Setenv("PUNCH_HOME", "/tmp/punch-home")
	home, err := Home()
	if err != nil {
		t.Fatal(err)
	}
	if home != "/tmp/punch-home" {
		t.Errorf("Home = %q", home)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Projects["bad"] = Project{HourlyRate: -1, Color: "plaid"}
	cfg.Projects["solo"] = Project{HourlyRate: 10}
	cfg.Sync.AutoSync = true
	cfg.Sync.Remotes = []Remote{
		{Name: "a", Type: RemoteDir},
		{Name: "a", Type: RemoteHTTP, URL: "http://localhost:8080"},
		{Name: "b", Type: "ftp"},
		{Name: "c", Type: RemoteS3, Bucket: "x"},
		{Type: RemoteSQLite, Path: "x.db"},
	}

	problems := cfg.Validate()
	if !HasErrors(problems) {
		t.Fatal("expected errors")
	}

	var msgs []string
	for _, p := range problems {
		msgs = append(msgs, p.Error())
	}
	all := strings.Join(msgs, "\n")

	for _, want := range []string{
		"[projects.bad] 'hourly_rate' must not be negative.",
		"[projects.bad] 'color' must be a color name or hex code but is 'plaid'.",
		"[projects.solo] 'hourly_rate' is set but the project has no client.",
		"[sync.remotes.a] 'path' is required for dir remotes.",
		"[sync.remotes.a] remote is defined more than once.",
		"[sync.remotes.a] 'url' is not https",
		"[sync.remotes.b] 'type' must be one of",
		"[sync.remotes.c] s3 remotes need",
		"[sync.remotes[4]] 'name' is required",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("missing problem %q in:\n%s", want, all)
		}
	}
}

func TestAuthRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	a, err := LoadAuthFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Get("home"); ok {
		t.Fatal("empty store returned credentials")
	}

	a.Set("home", Credentials{ServerURL: "https://punch.example", Token: "tok", UserID: "u1"})
	if err := a.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadAuthFile(path)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := loaded.Get("home")
	if !ok || c.Token != "tok" {
		t.Errorf("credentials = %+v", c)
	}

	loaded.Delete("home")
	if _, ok := loaded.Get("home"); ok {
		t.Error("Delete did not remove credentials")
	}
}
