package scrape

import (
	"io"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ps-discounts/internal/model"
)

// Placeholder texts written when the page lacks a value.
const (
	UnknownEdition   = "Unknown Edition"
	UnavailablePrice = "N/A"
	FreePrice        = "Ücretsiz"
)

// DefaultMaxEditions caps how many editions are kept per product.
const DefaultMaxEditions = 5

// freeLabels mark a product without a price tag as free to play.
var freeLabels = []string{"ücretsiz", "free", "indir", "download"}

const (
	selUpsell       = `div[data-qa="mfeUpsell"]`
	selEditionCard  = `article[data-qa^="mfeUpsell#productEdition"]`
	selEditionName  = `h3[data-qa$="#editionName"]`
	selEditionPrice = `span[data-qa$="#finalPrice"]`
	selMainTitle    = `h1[data-qa="mfe-game-title#name"]`
	selMainPrice    = `span[data-qa="mfeCtaMain#offer0#finalPrice"]`
)

// ParseEditions extracts edition name and price text pairs from a concept
// page. Pages with an upsell section yield one edition per card; otherwise
// the main offer is used, named after the page title or fallbackName.
func ParseEditions(r io.Reader, fallbackName string, maxEditions int) ([]model.Edition, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}
	if maxEditions <= 0 {
		maxEditions = DefaultMaxEditions
	}

	var editions []model.Edition
	if upsell := doc.Find(selUpsell).First(); upsell.Length() > 0 {
		upsell.Find(selEditionCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
			name := UnknownEdition
			if h := card.Find(selEditionName).First(); h.Length() > 0 {
				name = strings.TrimSpace(h.Text())
			}
			priceText := UnavailablePrice
			if p := card.Find(selEditionPrice).First(); p.Length() > 0 {
				priceText = CleanPrice(p.Text())
			}
			editions = append(editions, model.Edition{Name: name, PriceText: priceText})
			return len(editions) < maxEditions
		})
		return editions, nil
	}

	name := fallbackName
	if h := doc.Find(selMainTitle).First(); h.Length() > 0 {
		name = strings.TrimSpace(h.Text())
	}
	if name == "" {
		name = UnknownEdition
	}

	priceText := UnavailablePrice
	if p := doc.Find(selMainPrice).First(); p.Length() > 0 {
		priceText = CleanPrice(p.Text())
	} else if hasFreeLabel(doc) {
		priceText = FreePrice
	}
	return append(editions, model.Edition{Name: name, PriceText: priceText}), nil
}

func hasFreeLabel(doc *goquery.Document) bool {
	found := doc.Find("body *").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return slices.Contains(freeLabels, strings.ToLower(strings.TrimSpace(s.Text())))
	})
	return found.Length() > 0
}

// CleanPrice strips non-breaking spaces and the currency suffix from a
// price label. An empty label becomes UnavailablePrice.
func CleanPrice(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "TL", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return UnavailablePrice
	}
	return s
}
