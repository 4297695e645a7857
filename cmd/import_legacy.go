package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ps-discounts/internal/legacy"
)

var importLegacyPath string

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy",
	Short: "Import games_DD_MM_YYYY_HH_MM tables from a legacy SQLite database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}
		path := importLegacyPath
		if path == "" {
			path = cfg.Legacy.Path
		}

		loc, err := time.LoadLocation(cfg.Legacy.Timezone)
		if err != nil {
			return eris.Wrap(err, "load legacy timezone")
		}

		imp, err := legacy.Open(path, loc)
		if err != nil {
			return err
		}
		defer imp.Close() //nolint:errcheck

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := imp.Import(ctx, st)
		if err != nil {
			return err
		}

		zap.L().Info("legacy import complete",
			zap.String("db", path),
			zap.Int("tables", sum.Tables),
			zap.Int("skipped", sum.Skipped),
			zap.Int("snapshots", sum.Snapshots),
			zap.Int("products", sum.Products),
		)
		return nil
	},
}

func init() {
	importLegacyCmd.Flags().StringVar(&importLegacyPath, "db", "", "legacy database path (default from config)")
	rootCmd.AddCommand(importLegacyCmd)
}
