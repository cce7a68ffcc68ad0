// Package main implements the patternmind CLI: a cross-project pattern
// intelligence engine tracking reusable code patterns, session outcomes,
// and per-project knowledge.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"patternmind/internal/config"
	"patternmind/internal/intelligence"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "patternmind",
	Short: "patternmind - cross-project pattern intelligence",
	Long: `patternmind tracks reusable code patterns, development session outcomes,
and per-project knowledge across a workspace, and answers questions like
"which pattern works here", "how are my sessions trending", and "what
should this project learn from that one".

All scoring is deterministic arithmetic over recorded counters.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// initCmd prepares a workspace.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a patternmind workspace",
	Long:  "Creates the .patternmind directory and writes a default config file.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	dir := filepath.Join(ws, ".patternmind")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Workspace already initialized (%s)\n", cfgPath)
		return nil
	}
	if err := config.DefaultConfig().Save(cfgPath); err != nil {
		return err
	}

	logger.Info("Workspace initialized", zap.String("path", ws))
	fmt.Printf("Initialized patternmind workspace at %s\n", ws)
	return nil
}

// resolveWorkspace picks the workspace root: the --workspace flag if given,
// otherwise walks up from the working directory.
func resolveWorkspace() (string, error) {
	if workspace != "" {
		return workspace, nil
	}
	return config.FindWorkspaceRoot()
}

// loadConfig loads the workspace config, with the --config flag taking
// precedence over the default location.
func loadConfig(ws string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(ws, ".patternmind", "config.yaml")
	}
	return config.Load(path)
}

// withCoordinator runs fn against an initialized coordinator, owning the
// full lifecycle around the call.
func withCoordinator(fn func(ctx context.Context, c *intelligence.Coordinator) error) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}

	c := intelligence.NewCoordinator(cfg, ws, nil, nil)
	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Engine close failed", zap.Error(err))
		}
	}()

	return fn(ctx, c)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace root (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(patternCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
