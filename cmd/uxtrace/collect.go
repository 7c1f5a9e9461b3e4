package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uxtrace/uxtrace/internal/server"
	"github.com/uxtrace/uxtrace/internal/storage"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the telemetry collector server",
	Long: `Run the collector: accepts batched telemetry on POST /log, serves the
merged event feed on /events-json and the raw screenshot store on
/data/screenshots.json. Storage backend and listen address come from
configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Server.Backend, cfg.Server.DataDir)
		if err != nil {
			return fmt.Errorf("open %s store: %w", cfg.Server.Backend, err)
		}
		defer store.Close()

		return server.NewServer(store, cfg.Server.Address).Start()
	},
}
