package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ps-discounts/internal/scrape"
)

var (
	scrapeCSVPath string
	scrapeLimit   int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Capture a price snapshot for every tracked product",
	Long:  "Fetches each product's concept page, parses its editions and appends one snapshot per product at a shared timestamp.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// An explicit CSV refreshes the product list; otherwise the store
		// is the source, seeded from the configured CSV when empty.
		products, err := st.ListProducts(ctx)
		if err != nil {
			return eris.Wrap(err, "list products")
		}
		if scrapeCSVPath != "" || len(products) == 0 {
			path := scrapeCSVPath
			if path == "" {
				path = cfg.Catalog.ProductsCSV
			}
			products, err = readCatalogFile(path)
			if err != nil {
				return err
			}
			if _, err := st.UpsertProducts(ctx, products); err != nil {
				return eris.Wrap(err, "upsert products")
			}
		}
		if scrapeLimit > 0 && scrapeLimit < len(products) {
			products = products[:scrapeLimit]
		}

		scraper := scrape.NewConceptScraper(scrape.Options{
			BaseURL:     cfg.Catalog.BaseURL,
			UserAgent:   cfg.Scrape.UserAgent,
			Timeout:     cfg.Scrape.Timeout(),
			MaxEditions: cfg.Scrape.MaxEditions,
		})
		runner := scrape.NewRunner(scraper, cfg.Scrape.Workers, cfg.Scrape.RequestsPerSec)

		takenAt := time.Now().UTC()
		snapshots, sum, err := runner.Run(ctx, products, takenAt)
		if err != nil {
			return err
		}

		appended, err := st.AppendBatch(ctx, snapshots)
		if err != nil {
			return eris.Wrap(err, "append snapshots")
		}

		zap.L().Info("scrape complete",
			zap.Time("taken_at", takenAt),
			zap.Int("products", sum.Total),
			zap.Int64("succeeded", sum.Succeeded),
			zap.Int64("failed", sum.Failed),
			zap.Int("appended", appended),
			zap.Duration("duration", sum.Duration),
		)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeCSVPath, "csv", "", "refresh products from this CSV before scraping")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "scrape at most this many products (0 = all)")
	rootCmd.AddCommand(scrapeCmd)
}
