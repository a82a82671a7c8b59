package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/punch/internal/config"
	"github.com/existflow/punch/internal/model"
	"github.com/existflow/punch/internal/ui"
)

var projectsCmd = &cobra.Command{
	Use:     "projects [project...]",
	Aliases: []string{"project"},
	Short:   "Show statistics for projects",
	Long: `Show total time and pay per project. Without arguments every project
that is configured or has punches is listed.

Examples:
  punch projects
  punch projects acme
  punch projects set acme --name "Acme Corp" --rate 85 --color "#FF6B6B"`,
	RunE: runProjects,
}

var projectSetCmd = &cobra.Command{
	Use:   "set <project>",
	Short: "Set a project's display name, client, hourly rate or color",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectSet,
}

var (
	projectName   string
	projectClient string
	projectRate   float64
	projectColor  string
)

func init() {
	projectSetCmd.Flags().StringVar(&projectName, "name", "", "Display name")
	projectSetCmd.Flags().StringVar(&projectClient, "client", "", "Client billed for the project")
	projectSetCmd.Flags().Float64Var(&projectRate, "rate", 0, "Hourly rate")
	projectSetCmd.Flags().StringVarP(&projectColor, "color", "c", "", "Project color (hex)")

	projectsCmd.AddCommand(projectSetCmd)
}

type projectStats struct {
	Key      string
	Label    string
	Punches  int
	Total    time.Duration
	Pay      float64
	Rate     float64
	First    time.Time
	Latest   time.Time
	HasFirst bool
}

// summarize computes per project totals. Projects named in keys are
// reported even without punches.
func summarize(c *config.Config, punches []model.Punch, keys []string, at time.Time) []projectStats {
	byKey := map[string]*projectStats{}
	get := func(key string) *projectStats {
		st, ok := byKey[key]
		if !ok {
			st = &projectStats{Key: key, Label: c.ProjectLabel(key), Rate: c.HourlyRate(key)}
			byKey[key] = st
		}
		return st
	}

	for _, key := range keys {
		get(key)
	}
	for i := range punches {
		p := &punches[i]
		if _, ok := byKey[p.Project]; !ok && len(keys) > 0 {
			continue
		}
		st := get(p.Project)
		st.Punches++
		st.Total += p.Duration(at)
		rate := p.Rate
		if rate == 0 {
			rate = st.Rate
		}
		st.Pay += p.Pay(rate, at)
		if !st.HasFirst || p.In.Before(st.First) {
			st.First, st.HasFirst = p.In, true
		}
		if p.In.After(st.Latest) {
			st.Latest = p.In
		}
	}

	out := make([]projectStats, 0, len(byKey))
	for _, st := range byKey {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func runProjects(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	punches, err := s.Punches(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list punches: %w", err)
	}

	var stats []projectStats
	if len(args) > 0 {
		stats = summarize(cfg, punches, args, now())
	} else {
		stats = mergeConfigured(summarize(cfg, punches, nil, now()), cfg)
	}

	if len(stats) == 0 {
		fmt.Println("No projects yet. Start one with: punch in <project>")
		return nil
	}

	for _, st := range stats {
		printProject(st)
	}
	return nil
}

// mergeConfigured adds configured projects that have no punches
func mergeConfigured(stats []projectStats, c *config.Config) []projectStats {
	seen := map[string]bool{}
	for _, st := range stats {
		seen[st.Key] = true
	}
	for key := range c.Projects {
		if !seen[key] {
			stats = append(stats, projectStats{Key: key, Label: c.ProjectLabel(key), Rate: c.HourlyRate(key)})
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Label < stats[j].Label })
	return stats
}

func printProject(st projectStats) {
	fmt.Printf("\n📁 %s\n", ui.ProjectStyle(cfg.Projects[st.Key].Color).Render(st.Label))
	fmt.Println(ui.Rule(40))
	fmt.Printf("  %-10s %s (%s)\n", "Time", ui.Duration(st.Total), ui.Count(st.Punches, "punch", "punches"))
	if st.Rate > 0 {
		fmt.Printf("  %-10s %s/hr\n", "Rate", ui.Money(st.Rate))
	}
	if st.Pay > 0 {
		fmt.Printf("  %-10s %s\n", "Earned", ui.Money(st.Pay))
	}
	if st.HasFirst {
		fmt.Printf("  %-10s %s\n", "First", st.First.Format(cfg.Display.DateFormat))
		fmt.Printf("  %-10s %s\n", "Latest", ui.Ago(st.Latest))
	}
}

func runProjectSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	p := cfg.Projects[key]

	if cmd.Flags().Changed("name") {
		p.Name = projectName
	}
	if cmd.Flags().Changed("client") {
		p.Client = projectClient
	}
	if cmd.Flags().Changed("rate") {
		p.HourlyRate = projectRate
	}
	if cmd.Flags().Changed("color") {
		p.Color = projectColor
	}

	cfg.Projects[key] = p
	for _, problem := range cfg.Validate() {
		if problem.Severity == config.SeverityError {
			return problem
		}
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Printf("✅ Saved project %s\n", projectLabel(key))
	return nil
}
