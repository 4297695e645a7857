package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/ps-discounts/internal/report"
)

var (
	compareFormat string
	compareOutput string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Report price drops between the two latest scrapes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if compareFormat != "" {
			cfg.Report.Format = compareFormat
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

		out := compareOutput
		if out == "" {
			out = cfg.Report.Output
		}

		now := time.Now().UTC()
		previous, latest, ok, err := analyzer.ComparePair(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return writeReport(cmd.OutOrStdout(), report.Empty(report.ModeCompare, now), cfg.Report.Format, out)
		}

		events, err := analyzer.Drops(ctx, previous, latest)
		if err != nil {
			return err
		}
		r := report.New(report.ModeCompare, latest, 0, events, now)
		return writeReport(cmd.OutOrStdout(), r, cfg.Report.Format, out)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareFormat, "format", "", "output format: markdown, table, json or yaml (default from config)")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "", "output path, - for stdout (default from config)")
	rootCmd.AddCommand(compareCmd)
}
