package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uxtrace/uxtrace/internal/config"
	"github.com/uxtrace/uxtrace/internal/logging"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "uxtrace",
	Short: "uxtrace - interaction telemetry capture, collection and replay",
	Long: `uxtrace captures user-interaction telemetry (button presses and
periodic screenshots), buffers it locally, uploads it to a collector on a
fixed period, and reconstructs session timelines by correlating button
events with the screenshot taken nearest in time.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"uxtrace version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(timelineCmd)
}

// loadConfig resolves the platform app dir, loads configuration and
// initializes logging.
func loadConfig() (*config.Config, error) {
	appDir, err := config.AppDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return nil, fmt.Errorf("create application directory: %w", err)
	}

	cfg, err := config.Load(appDir)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON})
	return cfg, nil
}
