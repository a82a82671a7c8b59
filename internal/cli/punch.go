package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/punch/internal/model"
	"github.com/existflow/punch/internal/ui"
)

// now is the clock used by every command
var now = time.Now

var inCmd = &cobra.Command{
	Use:   "in <project>",
	Short: "Start tracking time on a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runIn,
}

var outCmd = &cobra.Command{
	Use:   "out [comment...]",
	Short: "Stop tracking time, with an optional comment",
	RunE:  runOut,
}

var commentCmd = &cobra.Command{
	Use:   "comment <comment...>",
	Short: "Add a comment to remember what you worked on",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runComment,
}

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE:  runNow,
}

// ErrNotPunchedIn is returned by commands that need an active session
var ErrNotPunchedIn = errors.New("you're not punched in")

func runIn(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore()
	if err != nil {
		return err
	}

	current, err := s.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to read punches: %w", err)
	}
	if current != nil {
		return fmt.Errorf("you're already punched in on %s! Punch out first", cfg.ProjectLabel(current.Project))
	}

	project := args[0]
	p := model.NewPunch(project, now())
	p.Rate = cfg.HourlyRate(project)
	if err := s.SavePunch(ctx, &p); err != nil {
		return fmt.Errorf("failed to save punch: %w", err)
	}

	fmt.Printf("⏱  Punched in on %s at %s.\n", projectLabel(project), p.In.Format(cfg.Display.TimeFormat))
	maybeSyncAfterChange(ctx, s)
	return nil
}

func runOut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore()
	if err != nil {
		return err
	}

	current, err := s.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to read punches: %w", err)
	}
	if current == nil {
		return ErrNotPunchedIn
	}

	at := now()
	current.PunchOut(at)
	current.AddComment(strings.Join(args, " "), at)
	if err := s.SavePunch(ctx, current); err != nil {
		return fmt.Errorf("failed to save punch: %w", err)
	}

	fmt.Println(punchOutMessage(current, at))
	maybeSyncAfterChange(ctx, s)
	return nil
}

func runComment(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore()
	if err != nil {
		return err
	}

	target, err := s.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to read punches: %w", err)
	}

	if target == nil {
		target, err = s.MostRecent(ctx)
		if err != nil {
			return fmt.Errorf("failed to read punches: %w", err)
		}
		if target == nil {
			return ErrNotPunchedIn
		}
		ok, err := confirm(
			"You're not punched in.",
			fmt.Sprintf("Add to last punch on '%s' (%s)?", cfg.ProjectLabel(target.Project), punchSpan(target, now())),
		)
		if err != nil || !ok {
			return err
		}
	}

	target.AddComment(strings.Join(args, " "), now())
	if err := s.SavePunch(ctx, target); err != nil {
		return fmt.Errorf("failed to save punch: %w", err)
	}

	fmt.Println("💬 Comment saved.")
	maybeSyncAfterChange(ctx, s)
	return nil
}

func runNow(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}

	current, err := s.Current(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read punches: %w", err)
	}
	if current == nil {
		fmt.Println("No current session.")
		return nil
	}

	fmt.Println(nowMessage(current, now()))
	return nil
}

// rateFor prefers the rate stored on the punch over the configured one
func rateFor(p *model.Punch) float64 {
	if p.Rate > 0 {
		return p.Rate
	}
	return cfg.HourlyRate(p.Project)
}

func projectLabel(project string) string {
	return ui.ProjectStyle(cfg.Projects[project].Color).Render(cfg.ProjectLabel(project))
}

func punchOutMessage(p *model.Punch, at time.Time) string {
	msg := fmt.Sprintf("✅ Punched out on %s at %s. Worked for %s",
		projectLabel(p.Project), at.Format(cfg.Display.TimeFormat), ui.Duration(p.Duration(at)))
	if pay := p.Pay(rateFor(p), at); pay > 0 {
		msg += " and earned " + ui.Money(pay)
	}
	return msg + "."
}

func nowMessage(p *model.Punch, at time.Time) string {
	msg := fmt.Sprintf("You've been working on %s since %s (%s ago).",
		projectLabel(p.Project), p.In.Format(cfg.Display.TimeFormat), ui.Duration(p.Duration(at)))
	if rate := rateFor(p); rate > 0 {
		msg += " Earned " + ui.Money(p.Pay(rate, at)) + "."
	}
	return msg
}

// punchSpan describes a punch as "15:04 - 17:30", adding dates when the
// punch is not from today
func punchSpan(p *model.Punch, today time.Time) string {
	layout := cfg.Display.TimeFormat
	out := today
	if p.Out != nil {
		out = *p.Out
	}
	if !sameDay(p.In, today) || !sameDay(out, today) {
		layout = "Jan 2 " + layout
	}
	return p.In.Format(layout) + " - " + out.Format(layout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
