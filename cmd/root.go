package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ps-discounts/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ps-discounts",
	Short: "PlayStation Store price tracking and discount detection",
	Long:  "Scrapes concept pages into timestamped price snapshots, detects drops and active discounts per edition, and reports them as markdown, tables, JSON or an HTTP API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
