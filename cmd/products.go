package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ps-discounts/internal/model"
	"github.com/sells-group/ps-discounts/internal/scrape"
)

var productsCSVPath string

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Manage the tracked product list",
}

var productsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import concept ids and names from a CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path := productsCSVPath
		if path == "" {
			path = cfg.Catalog.ProductsCSV
		}
		products, err := readCatalogFile(path)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertProducts(ctx, products)
		if err != nil {
			return eris.Wrap(err, "import products")
		}

		zap.L().Info("products imported",
			zap.Int("upserted", n),
			zap.String("csv", path),
		)
		return nil
	},
}

func readCatalogFile(path string) ([]model.Product, error) {
	if path == "" {
		return nil, eris.New("product csv path is required (--csv or PSD_CATALOG_PRODUCTS_CSV)")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return scrape.ReadCatalog(f)
}

func init() {
	productsImportCmd.Flags().StringVar(&productsCSVPath, "csv", "", "path to product CSV (default from config)")
	productsCmd.AddCommand(productsImportCmd)
	rootCmd.AddCommand(productsCmd)
}
