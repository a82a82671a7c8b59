package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/existflow/punch/internal/ui"
)

var purgeCmd = &cobra.Command{
	Use:    "purge <project>",
	Short:  "Delete every punch of a project",
	Long: `Delete every punch of a project from this machine.

Sync does not record deletions: remotes still hold the purged punches and
the next 'punch sync' downloads them again. Purge the project on every
machine and clear it from each remote to remove it for good.`,
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runPurge,
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	project := args[0]
	label := cfg.ProjectLabel(project)

	s, err := openStore()
	if err != nil {
		return err
	}

	punches, err := s.ByProject(ctx, project)
	if err != nil {
		return fmt.Errorf("failed to list punches: %w", err)
	}
	if len(punches) == 0 {
		fmt.Printf("%s has no punches.\n", label)
		return nil
	}

	at := now()
	var total time.Duration
	for i := range punches {
		total += punches[i].Duration(at)
	}

	fmt.Printf("⚠️  Purging %s would delete %s totalling %s.\n",
		label, ui.Count(len(punches), "punch", "punches"), ui.Duration(total))

	var typed string
	err = huh.NewInput().
		Title(fmt.Sprintf("Type in '%s' if you're REALLY sure", label)).
		Value(&typed).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	if typed != label {
		fmt.Println("Cancelled.")
		return nil
	}

	n, err := s.Purge(ctx, punches)
	if err != nil {
		return fmt.Errorf("purged %d of %d punches: %w", n, len(punches), err)
	}
	fmt.Printf("🗑️  Purged %s.\n", ui.Count(n, "punch", "punches"))
	if len(cfg.Sync.Remotes) > 0 {
		fmt.Println(ui.MutedStyle.Render("Remotes still hold these punches; the next sync downloads them again."))
	}
	return nil
}
