package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/ps-discounts/internal/report"
)

var (
	reportFormat       string
	reportOutput       string
	reportLookbackDays int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report discounts active within the lookback window",
	Long:  "Compares each edition's latest price with the most recent higher price inside the lookback window and renders the active discounts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if reportLookbackDays > 0 {
			cfg.Analysis.LookbackDays = reportLookbackDays
		}
		if reportFormat != "" {
			cfg.Report.Format = reportFormat
		}
		if reportOutput != "" {
			cfg.Report.Output = reportOutput
		}
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		analyzer, err := newAnalyzer(st, cfg.Analysis.LookbackDays)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		latest, ok, err := analyzer.LatestTimestamp(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return writeReport(cmd.OutOrStdout(), report.Empty(report.ModeWindow, now), cfg.Report.Format, cfg.Report.Output)
		}

		events, err := analyzer.Discounts(ctx, latest)
		if err != nil {
			return err
		}
		r := report.New(report.ModeWindow, latest, cfg.Analysis.LookbackDays, events, now)
		return writeReport(cmd.OutOrStdout(), r, cfg.Report.Format, cfg.Report.Output)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "", "output format: markdown, table, json or yaml (default from config)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "output path, - for stdout (default from config)")
	reportCmd.Flags().IntVar(&reportLookbackDays, "lookback-days", 0, "lookback window in days (default from config)")
	rootCmd.AddCommand(reportCmd)
}
