package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/ps-discounts/internal/model"
	"github.com/sells-group/ps-discounts/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve products, prices and discounts over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		analyze := func(ctx context.Context, lookbackDays int, now time.Time) ([]model.DiscountEvent, error) {
			a, err := newAnalyzer(st, lookbackDays)
			if err != nil {
				return nil, err
			}
			return a.Discounts(ctx, now)
		}

		srv := server.New(st, analyze, server.Config{
			Port:                cfg.Server.Port,
			DefaultLookbackDays: cfg.Analysis.LookbackDays,
			MaxLookbackDays:     cfg.Server.MaxLookbackDays,
		})
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
