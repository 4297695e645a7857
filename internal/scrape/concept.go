package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ps-discounts/internal/model"
)

// DefaultBaseURL is the Turkish store's concept page prefix.
const DefaultBaseURL = "https://store.playstation.com/tr-tr/concept/"

// DefaultUserAgent mimics a desktop browser; the store serves a reduced
// page to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const maxPageBytes = 4 << 20

// Options configures a ConceptScraper.
type Options struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MaxEditions int
}

// ConceptScraper fetches concept pages over HTTP and parses their editions.
type ConceptScraper struct {
	client *http.Client
	opts   Options
}

// NewConceptScraper creates a ConceptScraper, filling unset options with
// defaults.
func NewConceptScraper(opts Options) *ConceptScraper {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxEditions <= 0 {
		opts.MaxEditions = DefaultMaxEditions
	}
	return &ConceptScraper{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		opts: opts,
	}
}

// URL returns the concept page address for a product.
func (c *ConceptScraper) URL(conceptID string) string {
	return c.opts.BaseURL + url.PathEscape(conceptID)
}

// Scrape fetches the product's concept page and returns its editions.
func (c *ConceptScraper) Scrape(ctx context.Context, p model.Product) ([]model.Edition, error) {
	if p.ID == "" {
		return nil, eris.New("scrape: empty concept id")
	}
	target := c.URL(p.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: fetch %s", target)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read body")
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("scrape: blocked (%s) fetching %s", kind, target)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("scrape: status %d from %s", resp.StatusCode, target)
	}

	return ParseEditions(bytes.NewReader(body), p.Name, c.opts.MaxEditions)
}
