// Package cli defines the root Cobra command and global flag/context setup.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hacker-4-good/chroma/internal/cli/commands"
	"github.com/hacker-4-good/chroma/internal/core/config"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/core/plugin"
	"github.com/hacker-4-good/chroma/internal/core/state"
	"github.com/hacker-4-good/chroma/pkg/pprint"
)

// globalFlags holds values bound to persistent global flags.
var globalFlags struct {
	configFile string
	runner     string
	debug      bool
	jsonOutput bool
}

// rootCmd is the base command for pipsmoke.
var rootCmd = &cobra.Command{
	Use:           "pipsmoke",
	Short:         "Pipsmoke — Python Package Smoke Testing from the Terminal",
	Long:          ``, // overridden by SetHelpTemplate below
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare `pipsmoke` — help func already prints banner
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}
		return initRuntime(cmd)
	},
}

// Execute runs the CLI. Called by main().
func Execute() {
	// Show banner before every help screen
	origHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		pprint.PrintBanner(commands.Version, commands.BuildDate)
		origHelp(cmd, args)
	})

	if err := rootCmd.Execute(); err != nil {
		pprint.Error("%s", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.configFile, "config", "c", "", "Path to pipsmoke.yaml (defaults to auto-discovery)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.runner, "runner", "r", "", "Sandbox runner: venv, docker or ssh (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "Enable debug-level logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.jsonOutput, "json", false, "Output in machine-readable JSON")

	// Register all subcommands
	rootCmd.AddCommand(
		commands.NewInitCmd(),
		commands.NewVerifyCmd(),
		commands.NewMatrixCmd(),
		commands.NewInspectCmd(),
		commands.NewRunsCmd(),
		commands.NewWatchCmd(),
		commands.NewHostsCmd(),
		commands.NewImagesCmd(),
		commands.NewCleanCmd(),
		commands.NewUICmd(),
		commands.NewVersionCmd(),
	)
}

// initRuntime loads config, logger, state, and plugins before each command runs.
func initRuntime(cmd *cobra.Command) error {
	// Load config
	cfg, err := config.Load(globalFlags.configFile)
	if err != nil && globalFlags.configFile != "" {
		return fmt.Errorf("config: %w", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	// Initialise logger
	smokeHome := config.SmokeHome()
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(smokeHome, "logs", "pipsmoke.log")
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format, logFile, smokeHome, globalFlags.debug)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	log.Debug("starting", "build", commands.BuildSummary())

	// Open state DB
	dbPath := filepath.Join(smokeHome, "state.db")
	if err := os.MkdirAll(smokeHome, 0750); err != nil {
		return fmt.Errorf("create pipsmoke home: %w", err)
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("state db: %w", err)
	}

	// Load check plugins; a broken plugin dir never blocks the CLI
	plugins := plugin.NewHost(log)
	if err := plugins.LoadDir(filepath.Join(smokeHome, "plugins")); err != nil {
		log.Warn("plugin load failed", "error", err)
	}
	if names := plugins.List(); len(names) > 0 {
		log.Debug("plugins loaded", "names", names)
	}

	// Store in command context
	cmd.SetContext(commands.NewContext(cmd.Context(), &commands.Runtime{
		Config:  cfg,
		Log:     log,
		State:   db,
		Plugins: plugins,
		Flags: commands.GlobalFlags{
			Runner:     globalFlags.runner,
			Debug:      globalFlags.debug,
			JSONOutput: globalFlags.jsonOutput,
			ConfigFile: globalFlags.configFile,
		},
	}))

	return nil
}
