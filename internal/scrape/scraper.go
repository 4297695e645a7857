// Package scrape captures edition prices from PlayStation Store concept pages.
package scrape

import (
	"context"

	"github.com/sells-group/ps-discounts/internal/model"
)

// Scraper fetches the editions currently listed for one product.
type Scraper interface {
	Scrape(ctx context.Context, p model.Product) ([]model.Edition, error)
}
