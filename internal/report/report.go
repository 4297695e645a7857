// Package report orders discount events and renders them for people and
// machines.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ps-discounts/internal/model"
)

// Mode names the analysis that produced a report.
type Mode string

const (
	// ModeWindow reports discounts found within a lookback window.
	ModeWindow Mode = "window"
	// ModeCompare reports drops between the two latest snapshots.
	ModeCompare Mode = "compare"
)

// Format is an output encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", eris.Errorf("report: unknown format %q", s)
	}
}

// Report is a sorted set of discount events with its context. NoData is set
// when the store does not hold enough snapshots to compare.
type Report struct {
	GeneratedAt  time.Time             `json:"generated_at" yaml:"generated_at"`
	Mode         Mode                  `json:"mode" yaml:"mode"`
	AsOf         time.Time             `json:"as_of" yaml:"as_of"`
	LookbackDays int                   `json:"lookback_days,omitempty" yaml:"lookback_days,omitempty"`
	NoData       bool                  `json:"no_data,omitempty" yaml:"no_data,omitempty"`
	Events       []model.DiscountEvent `json:"events" yaml:"events"`
}

// New assembles a report, sorting a copy of events.
func New(mode Mode, asOf time.Time, lookbackDays int, events []model.DiscountEvent, generatedAt time.Time) Report {
	sorted := slices.Clone(events)
	if sorted == nil {
		sorted = []model.DiscountEvent{}
	}
	Sort(sorted)
	return Report{
		GeneratedAt:  generatedAt,
		Mode:         mode,
		AsOf:         asOf,
		LookbackDays: lookbackDays,
		Events:       sorted,
	}
}

// Empty returns a report flagged as having no comparable data.
func Empty(mode Mode, generatedAt time.Time) Report {
	return Report{GeneratedAt: generatedAt, Mode: mode, NoData: true, Events: []model.DiscountEvent{}}
}

// Sort orders events by product display name, then edition name, then
// product id. The sort is stable.
func Sort(events []model.DiscountEvent) {
	slices.SortStableFunc(events, func(a, b model.DiscountEvent) int {
		return cmp.Or(
			strings.Compare(displayName(a), displayName(b)),
			strings.Compare(a.EditionName, b.EditionName),
			strings.Compare(a.ProductID, b.ProductID),
		)
	})
}

func displayName(e model.DiscountEvent) string {
	return model.Product{ID: e.ProductID, Name: e.ProductName}.DisplayName()
}

// FormatDuration renders a whole-day count for display.
func FormatDuration(days int) string {
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", days)
	}
}
