package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/existflow/punch/internal/model"
	"github.com/existflow/punch/internal/ui"
)

var createCmd = &cobra.Command{
	Use:   "create <project> <in> <out> [comment...]",
	Short: "Create a punch after the fact",
	Long: `Create a finished punch. Times may be absolute or natural language.

Examples:
  punch create acme "2024-03-01 09:00" "2024-03-01 12:30" "planning"
  punch create acme "yesterday at 9am" "yesterday at 5pm"
  punch create acme "03-01-2024@09:00AM" "03-01-2024@12:30PM"`,
	Args: cobra.MinimumNArgs(3),
	RunE: runCreate,
}

var createYes bool

func init() {
	createCmd.Flags().BoolVarP(&createYes, "yes", "y", false, "Create without asking for confirmation")
}

// Layouts tried before falling back to natural language
var timeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 3:04pm",
	"01-02-2006@03:04PM",
	"01-02-2006@3:04PM",
	time.RFC3339,
}

var timeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseTime reads an absolute or natural language time relative to base
func parseTime(text string, base time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, text, base.Location()); err == nil {
			return t, nil
		}
	}

	r, err := timeParser.Parse(text, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse time %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("cannot parse time %q (try \"2006-01-02 15:04\" or \"yesterday at 9am\")", text)
	}
	return r.Time, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	project := args[0]
	base := now()

	in, err := parseTime(args[1], base)
	if err != nil {
		return err
	}
	out, err := parseTime(args[2], base)
	if err != nil {
		return err
	}
	if !out.After(in) {
		return fmt.Errorf("time out (%s) must be after time in (%s)", out.Format(time.RFC1123), in.Format(time.RFC1123))
	}

	p := model.NewPunch(project, in)
	p.Rate = cfg.HourlyRate(project)
	p.PunchOut(out)
	comment := strings.Join(args[3:], " ")
	p.AddComment(comment, base)

	if !createYes {
		fmt.Println(ui.BoxStyle.Render(createSummary(&p, comment)))
		ok, err := confirm("Create this punch?", "")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	if err := s.SavePunch(ctx, &p); err != nil {
		return fmt.Errorf("failed to save punch: %w", err)
	}

	fmt.Println("✅ Punch created!")
	maybeSyncAfterChange(ctx, s)
	return nil
}

func createSummary(p *model.Punch, comment string) string {
	const layout = "Monday, Jan 2 2006 @ 15:04"
	pay := "N/A"
	if rate := rateFor(p); rate > 0 {
		pay = ui.Money(p.Pay(rate, *p.Out))
	}

	var b strings.Builder
	fmt.Fprintf(&b, " Project: %s\n", cfg.ProjectLabel(p.Project))
	fmt.Fprintf(&b, " Time In: %s\n", p.In.Format(layout))
	fmt.Fprintf(&b, "Time Out: %s\n", p.Out.Format(layout))
	fmt.Fprintf(&b, "Duration: %s\n", ui.Duration(p.Duration(*p.Out)))
	fmt.Fprintf(&b, "     Pay: %s", pay)
	if comment != "" {
		fmt.Fprintf(&b, "\n Comment: %s", comment)
	}
	return b.String()
}
