package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/punch/internal/model"
	"github.com/existflow/punch/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "log"},
	Short:   "List punches",
	Long: `List punches grouped by day, optionally filtered by project.

Examples:
  punch list
  punch list --since "last monday"
  punch list --project acme --since 2024-03-01`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listSince   string
	listProject string
	listIDs     bool
)

func init() {
	listCmd.Flags().StringVar(&listSince, "since", "", "Only show punches starting at or after this time (default: 7 days ago)")
	listCmd.Flags().StringVarP(&listProject, "project", "P", "", "Filter by project")
	listCmd.Flags().BoolVar(&listIDs, "ids", false, "Show punch ids and comment numbers (default: display.show_ids)")
}

func runList(cmd *cobra.Command, args []string) error {
	at := now()
	since := at.AddDate(0, 0, -7)
	if listSince != "" {
		t, err := parseTime(listSince, at)
		if err != nil {
			return err
		}
		since = t
	}

	s, err := openStore()
	if err != nil {
		return err
	}

	punches, err := s.Between(cmd.Context(), since, at.Add(time.Minute))
	if err != nil {
		return fmt.Errorf("failed to list punches: %w", err)
	}
	punches = filterProject(punches, listProject)

	if len(punches) == 0 {
		fmt.Println("No punches found. Start one with: punch in <project>")
		return nil
	}

	for _, day := range groupByDay(punches) {
		printDay(day, at)
	}
	return nil
}

func filterProject(punches []model.Punch, project string) []model.Punch {
	if project == "" {
		return punches
	}
	out := punches[:0:0]
	for _, p := range punches {
		if p.Project == project {
			out = append(out, p)
		}
	}
	return out
}

type day struct {
	date    time.Time
	punches []model.Punch
}

// groupByDay groups punches, already sorted by time in, by local date
func groupByDay(punches []model.Punch) []day {
	var days []day
	for _, p := range punches {
		if n := len(days); n > 0 && sameDay(days[n-1].date, p.In) {
			days[n-1].punches = append(days[n-1].punches, p)
			continue
		}
		days = append(days, day{date: p.In.Local(), punches: []model.Punch{p}})
	}
	return days
}

func printDay(d day, at time.Time) {
	var total time.Duration
	var pay float64
	for i := range d.punches {
		p := &d.punches[i]
		total += p.Duration(at)
		pay += p.Pay(rateFor(p), at)
	}

	header := fmt.Sprintf("📅 %s", d.date.Format(cfg.Display.DateFormat))
	totals := ui.Duration(total)
	if pay > 0 {
		totals += " · " + ui.Money(pay)
	}
	fmt.Printf("\n%s  %s\n", ui.HeaderStyle.Render(header), ui.MutedStyle.Render(totals))
	fmt.Println(ui.Rule(60))

	for i := range d.punches {
		printPunch(&d.punches[i], at)
	}
}

func printPunch(p *model.Punch, at time.Time) {
	span := p.In.Format(cfg.Display.TimeFormat) + " - "
	if p.Active() {
		span += ui.ActiveStyle.Render("now")
	} else {
		span += p.Out.Format(cfg.Display.TimeFormat)
	}

	showIDs := listIDs || cfg.Display.ShowIDs
	id := ""
	if showIDs {
		id = ui.MutedStyle.Render(shortID(p.ID)) + "  "
	}

	fmt.Printf("  %s%-24s  %-15s  %s\n", id, ui.Truncate(cfg.ProjectLabel(p.Project), 24), span, ui.Duration(p.Duration(at)))
	for i, c := range p.Comments {
		bullet := "•"
		if showIDs {
			bullet = strconv.Itoa(i+1) + "."
		}
		fmt.Printf("      %s %s\n", ui.MutedStyle.Render(bullet), ui.Truncate(c.Comment, 70))
	}
}

// shortID is the id prefix printed by list
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
