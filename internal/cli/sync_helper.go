package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/existflow/punch/internal/config"
	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/remote"
	"github.com/existflow/punch/internal/store"
	"github.com/existflow/punch/internal/sync"
	"github.com/existflow/punch/internal/ui"
)

// selectRemotes returns the configured remotes named in names, or all of
// them when names is empty
func selectRemotes(c *config.Config, names []string) ([]config.Remote, error) {
	if len(names) == 0 {
		return c.Sync.Remotes, nil
	}
	var out []config.Remote
	for _, name := range names {
		r, ok := c.Remote(name)
		if !ok {
			return nil, fmt.Errorf("no remote named %q in %s", name, c.Path())
		}
		out = append(out, r)
	}
	return out, nil
}

// targetsFor turns remote configs into orchestrator targets. Remotes are
// opened lazily so a broken one fails only its own pass.
func targetsFor(c *config.Config, remotes []config.Remote) []sync.Target {
	var auth *config.Auth
	targets := make([]sync.Target, 0, len(remotes))
	for _, r := range remotes {
		targets = append(targets, sync.Target{
			Name:  r.Name,
			Label: r.DisplayName(),
			Open: func(ctx context.Context) (sync.Remote, error) {
				if auth == nil && r.Type == config.RemoteHTTP {
					loaded, err := config.LoadAuth()
					if err != nil {
						return nil, err
					}
					auth = loaded
				}
				rem, err := remote.Open(ctx, r, remote.Options{
					Config:     c,
					Auth:       auth,
					Passphrase: promptPassphrase,
				})
				if err != nil {
					return nil, err
				}
				return rem, nil
			},
		})
	}
	return targets
}

// newOrchestrator wires the local store to the selected remotes
func newOrchestrator(s *store.Store, names []string) (*sync.Orchestrator, error) {
	remotes, err := selectRemotes(cfg, names)
	if err != nil {
		return nil, err
	}
	if len(remotes) == 0 {
		return nil, errors.New("no remotes configured (add one under sync.remotes in config.yaml)")
	}

	orch := sync.NewOrchestrator(sync.NewReconciler(s, logger.Default()), targetsFor(cfg, remotes))
	orch.OnStart = func(t sync.Target) {
		fmt.Printf("🔄 Syncing with %s...\n", t.Label)
	}
	return orch, nil
}

// maybeSyncAfterChange syncs after a write operation if auto sync is on
func maybeSyncAfterChange(ctx context.Context, s *store.Store) {
	if noSync || !cfg.Sync.AutoSync || len(cfg.Sync.Remotes) == 0 {
		return
	}
	orch, err := newOrchestrator(s, nil)
	if err != nil {
		fmt.Printf("⚠️  Sync skipped: %v\n", err)
		return
	}
	printSummary(orch.SyncAll(ctx))
}

// printSummary prints one line per remote, plus any per-punch failures
func printSummary(summary *sync.Summary) {
	for _, rep := range summary.Reports {
		switch {
		case rep.Err != nil:
			fmt.Printf("%s %s: %v\n", ui.ErrorStyle.Render("⚠️  Sync failed"), rep.Remote, rep.Err)
		case len(rep.Uploaded) == 0 && len(rep.Downloaded) == 0 && len(rep.Failures) == 0:
			fmt.Printf("✓ %s already up to date\n", rep.Remote)
		default:
			fmt.Printf("✓ Synced %s (↑%d ↓%d)\n", rep.Remote, len(rep.Uploaded), len(rep.Downloaded))
		}
		for _, f := range rep.Failures {
			fmt.Printf("   %s %s\n", ui.WarnStyle.Render("✗"), f.Error())
		}
	}
}

// promptPassphrase asks for the passphrase of an encrypted remote
func promptPassphrase(r config.Remote) (string, error) {
	var pass string
	err := huh.NewInput().
		Title(fmt.Sprintf("Passphrase for %s", r.DisplayName())).
		EchoMode(huh.EchoModePassword).
		Value(&pass).
		Run()
	if err != nil {
		return "", fmt.Errorf("passphrase prompt: %w", err)
	}
	return pass, nil
}

// confirm asks a yes/no question
func confirm(title, description string) (bool, error) {
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}
