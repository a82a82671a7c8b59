package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/existflow/punch/internal/config"
	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/store"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	noSync     bool

	// Loaded once per invocation in PersistentPreRunE
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "punch",
	Short: "Punch - time tracking with sync",
	Long: `Punch tracks the time you spend on projects and keeps your punches in
sync across machines through any number of remotes (directories, S3 buckets,
SQLite files or a punch-server).

  punch in acme        # start working on acme
  punch out "shipped"  # stop, with a comment
  punch sync           # reconcile with every configured remote`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config from file (or defaults if not exists)
		loaded, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.F("error", err))
			loaded = config.DefaultConfig()
		}

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			loaded.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			loaded.LogConsole = logConsole
			configChanged = true
		}

		// Save config if changed via CLI flags
		if configChanged {
			if err := loaded.Save(); err != nil {
				logger.Warn("Failed to save config", logger.F("error", err))
			}
		}

		logConfig := logger.Config{
			Level:      logger.ParseLevel(loaded.LogLevel),
			FilePath:   loaded.LogFile,
			MaxSize:    10, // MB
			MaxAge:     7,
			MaxBackups: 5,
			Console:    loaded.LogConsole,
		}

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		problems := loaded.Validate()
		for _, p := range problems {
			if p.Severity == config.SeverityWarning {
				logger.Warn("Config warning", logger.F("problem", p.Error()))
			}
		}
		if config.HasErrors(problems) {
			for _, p := range problems {
				if p.Severity == config.SeverityError {
					fmt.Printf("❌ %s\n", p.Error())
				}
			}
			return fmt.Errorf("invalid config %s", loaded.Path())
		}

		cfg = loaded
		logger.Info("Punch started", logger.F("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("Punch exiting", logger.F("command", cmd.Name()))
		_ = logger.Close()
	},
}

// Execute runs the root command. Commands see ctx through cmd.Context().
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openStore opens the local punch directory under the punch home
func openStore() (*store.Store, error) {
	home, err := config.Home()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(home)
	if err != nil {
		return nil, fmt.Errorf("failed to open punch directory: %w", err)
	}
	return s, nil
}

func init() {
	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().BoolVar(&noSync, "no-sync", false, "Skip the automatic sync after a change")

	// Add subcommands
	rootCmd.AddCommand(inCmd)
	rootCmd.AddCommand(outCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(nowCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(authCmd)
}
