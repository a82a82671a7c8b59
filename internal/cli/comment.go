package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/punch/internal/model"
	"github.com/existflow/punch/internal/ui"
)

var commentEditCmd = &cobra.Command{
	Use:   "edit <punch-id> <index> <text...>",
	Short: "Replace an existing comment",
	Long: `Replace one comment on a punch. Find punch ids and comment numbers with
'punch list --ids'; a unique id prefix is enough.

Examples:
  punch comment edit 8d3c1f2a 1 "fixed the login redirect"
  punch comment edit 8d3c 2 "code review" --update-timestamp`,
	Args: cobra.MinimumNArgs(3),
	RunE: runCommentEdit,
}

var (
	commentUpdateTimestamp bool
	commentEditYes         bool
)

func init() {
	commentEditCmd.Flags().BoolVarP(&commentUpdateTimestamp, "update-timestamp", "u", false, "Set the comment's timestamp to now")
	commentEditCmd.Flags().BoolVarP(&commentEditYes, "yes", "y", false, "Replace without asking for confirmation")

	commentCmd.AddCommand(commentEditCmd)
}

// editComment replaces comment number n (one based, as printed by list)
// and returns the text it replaced
func editComment(p *model.Punch, n int, text string, updateTimestamp bool, at time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("comment text is empty")
	}
	var old string
	if n >= 1 && n <= len(p.Comments) {
		old = p.Comments[n-1].Comment
	}

	var stamp *time.Time
	if updateTimestamp {
		stamp = &at
	}
	if err := p.EditComment(n-1, text, stamp); err != nil {
		return "", err
	}
	return old, nil
}

func runCommentEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("comment number %q is not a number", args[1])
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	p, err := s.Find(ctx, args[0])
	if err != nil {
		return err
	}

	old, err := editComment(&p, n, strings.Join(args[2:], " "), commentUpdateTimestamp, now())
	if err != nil {
		return err
	}

	if !commentEditYes {
		fmt.Printf("\n  %s  %s\n", projectLabel(p.Project), punchSpan(&p, now()))
		fmt.Printf("    %s\n", ui.ErrorStyle.Render("- "+old))
		fmt.Printf("    %s\n\n", ui.SuccessStyle.Render("+ "+p.Comments[n-1].Comment))
		ok, err := confirm("Replace comment?", "")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := s.SavePunch(ctx, &p); err != nil {
		return fmt.Errorf("failed to save punch: %w", err)
	}

	fmt.Println("💬 Comment replaced.")
	maybeSyncAfterChange(ctx, s)
	return nil
}
