package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/existflow/punch/internal/config"
	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/record"
	"github.com/existflow/punch/internal/remote"
	"github.com/existflow/punch/internal/sync"
	"github.com/existflow/punch/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync [remote...]",
	Short: "Sync punches with remotes",
	Long: `Reconcile local punches with every configured remote, or only the named ones.

Commands:
  punch sync              # Sync with every remote
  punch sync s3 laptop    # Sync with two remotes
  punch sync status       # Show remotes and what would be transferred
  punch sync watch        # Keep syncing in the foreground
  punch sync key <remote> # Turn on encryption for a remote`,
	RunE: runSync,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured remotes and pending changes",
	RunE:  runSyncStatus,
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync whenever punches change and poll remotes periodically",
	Args:  cobra.NoArgs,
	RunE:  runSyncWatch,
}

var syncKeyCmd = &cobra.Command{
	Use:   "key <remote>",
	Short: "Generate an encryption salt for a remote and show its key fingerprint",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncKey,
}

var (
	statusCheck bool
	keyRotate   bool
)

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncWatchCmd)
	syncCmd.AddCommand(syncKeyCmd)

	syncStatusCmd.Flags().BoolVar(&statusCheck, "check", false, "Fetch each manifest and show pending uploads and downloads")
	syncKeyCmd.Flags().BoolVar(&keyRotate, "rotate", false, "Replace an existing salt (remote data must be re-uploaded)")
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(s, args)
	if err != nil {
		return err
	}

	summary := orch.SyncAll(cmd.Context())
	printSummary(summary)

	if n := summary.Failed(); n > 0 {
		return fmt.Errorf("%d of %d remotes failed to sync", n, len(summary.Reports))
	}
	if n := summary.Failures(); n > 0 {
		return fmt.Errorf("%d punches failed to sync", n)
	}
	return nil
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	remotes, err := selectRemotes(cfg, args)
	if err != nil {
		return err
	}
	if len(remotes) == 0 {
		fmt.Println("No remotes configured. Add one under sync.remotes in", cfg.Path())
		return nil
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	local, err := s.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list punches: %w", err)
	}

	auth, err := config.LoadAuth()
	if err != nil {
		logger.Warn("Failed to load credentials", logger.F("error", err))
		auth = &config.Auth{}
	}

	fmt.Printf("Local:     %s in %s\n", ui.Count(len(local), "punch", "punches"), s.Dir())
	fmt.Printf("Auto sync: %v\n", cfg.Sync.AutoSync)

	for _, r := range remotes {
		fmt.Printf("\n%s %s\n", ui.HeaderStyle.Render(r.Name), ui.MutedStyle.Render("("+r.Type+")"))
		fmt.Printf("  Label:     %s\n", r.DisplayName())
		if r.EncryptionSalt != "" {
			fmt.Println("  Encrypted: yes")
		}

		switch r.Type {
		case config.RemoteHTTP:
			if creds, ok := auth.Get(r.Name); ok {
				fmt.Printf("  Status:    %s\n", loginStatus(ctx, r, creds))
			} else if r.Token == "" {
				fmt.Printf("  Status:    Not logged in (run 'punch auth login %s')\n", r.Name)
			}
		case config.RemoteSQLite:
			printLastUpload(ctx, cfg.ResolvePath(r.Path))
		}

		if statusCheck {
			printPending(ctx, r, auth, local)
		}
	}
	return nil
}

// loginStatus asks the server who the stored token belongs to
func loginStatus(ctx context.Context, r config.Remote, creds config.Credentials) string {
	url := creds.ServerURL
	if url == "" {
		url = r.URL
	}
	me, err := remote.NewHTTP(url, creds.Token).Me(ctx)
	switch {
	case errors.Is(err, remote.ErrNotLoggedIn):
		return fmt.Sprintf("Session expired (run 'punch auth login %s')", r.Name)
	case err != nil:
		return fmt.Sprintf("✓ Logged in (user %s, server unreachable: %v)", creds.UserID, err)
	}
	return fmt.Sprintf("✓ Logged in as %s", me.Username)
}

func printLastUpload(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Println("  Last sync: never")
		return
	}
	db, err := remote.OpenSQLite(path)
	if err != nil {
		fmt.Printf("  Last sync: %v\n", err)
		return
	}
	defer db.Close()

	last, err := db.LastUpload(ctx)
	switch {
	case err != nil:
		fmt.Printf("  Last sync: %v\n", err)
	case last.IsZero():
		fmt.Println("  Last sync: never")
	default:
		fmt.Printf("  Last sync: %s\n", ui.Ago(last))
	}
}

func printPending(ctx context.Context, r config.Remote, auth *config.Auth, local []record.Record) {
	rem, err := remote.Open(ctx, r, remote.Options{Config: cfg, Auth: auth, Passphrase: promptPassphrase})
	if err != nil {
		fmt.Printf("  Pending:   %s\n", ui.ErrorStyle.Render(err.Error()))
		return
	}
	if c, ok := rem.(interface{ Close() error }); ok {
		defer c.Close()
	}

	manifest, err := rem.Manifest(ctx)
	if err != nil {
		fmt.Printf("  Pending:   %s\n", ui.ErrorStyle.Render(err.Error()))
		return
	}

	diff := sync.Diff(local, manifest)
	if diff.Empty() {
		fmt.Println("  Pending:   " + ui.SuccessStyle.Render("up to date"))
		return
	}
	fmt.Printf("  Pending:   ↑%d ↓%d", len(diff.Uploads), len(diff.Downloads))
	if len(diff.Skipped) > 0 {
		fmt.Printf(" (%d unreadable)", len(diff.Skipped))
	}
	fmt.Println()
}

func runSyncWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(s, nil)
	if err != nil {
		return err
	}

	auto := sync.NewAutoSync(orch.SyncAll, s.Dir())
	auto.SetOnSync(printSummary)

	fmt.Printf("👀 Watching %s (Ctrl+C to stop)\n", s.Dir())
	printSummary(orch.SyncAll(ctx))
	if err := auto.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// Flush a change that arrived during the debounce window
	if summary := auto.SyncNowIfPending(context.Background()); summary != nil {
		printSummary(summary)
	}
	fmt.Println("Stopped.")
	return nil
}

func runSyncKey(cmd *cobra.Command, args []string) error {
	r, ok := cfg.Remote(args[0])
	if !ok {
		return fmt.Errorf("no remote named %q in %s", args[0], cfg.Path())
	}

	if r.EncryptionSalt == "" || keyRotate {
		salt, err := remote.GenerateSalt()
		if err != nil {
			return err
		}
		r.EncryptionSalt = base64.StdEncoding.EncodeToString(salt)
		cfg.SetRemote(r)
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Encryption enabled for %s\n", r.DisplayName())
		fmt.Println("\n⚠️  IMPORTANT: Copy encryption_salt from config.yaml and use the same passphrase on other devices.")
	}

	crypto, err := remote.CryptoFor(r, promptPassphrase)
	if err != nil {
		return err
	}
	fmt.Printf("\nKey fingerprint: %s\n", crypto.Fingerprint())
	return nil
}
