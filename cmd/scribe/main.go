package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/logging"
)

var (
	// Global flags
	configPath string
	workspace  string
	apiKey     string
	debug      bool

	// Loaded once in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "scribe - iterative document drafting and refinement",
	Long: `scribe drafts long-form documents from an outline and a literature
pool, then refines them through scored critique rounds.

Every citation is issued by a ledger under per-section quotas, every
revision is an audited paragraph-level patch, and the returned document
is always the best-scoring version seen, never a regressed one.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ws := workspace
		if ws == "" {
			var err error
			ws, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}
		workspace = ws

		path := configPath
		if path == "" {
			path = filepath.Join(ws, ".scribe", "config.yaml")
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if debug {
			cfg.Logging.DebugMode = true
		}
		if apiKey != "" {
			cfg.Provider.Gemini.APIKey = apiKey
		}
		if cfg.Provider.Gemini.APIKey == "" {
			cfg.Provider.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
		}

		if err := logging.Initialize(ws, cfg.Logging.DebugMode); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("scribe starting (workspace=%s, debug=%v)", ws, cfg.Logging.DebugMode)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

// initCmd writes the default configuration into the workspace.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to .scribe/config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(workspace, ".scribe", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.scribe/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(roundsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
