package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

const (
	title         = "PlayStation Discount Report"
	dateLayout    = "02.01.2006 15:04"
	noDataMessage = "Not enough data to compare yet: at least two snapshots are required."
	noDropMessage = "No discounted editions found."
)

// Render writes r to w in the given format.
func Render(w io.Writer, r Report, f Format) error {
	var err error
	switch f {
	case FormatMarkdown:
		err = renderMarkdown(w, r)
	case FormatTable:
		err = renderTable(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(r); err == nil {
			err = enc.Close()
		}
	default:
		return eris.Errorf("report: unknown format %q", f)
	}
	return eris.Wrapf(err, "report: render %s", f)
}

func renderMarkdown(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Report date:** %s  \n", r.GeneratedAt.Format(dateLayout))
	if r.NoData {
		fmt.Fprintf(&b, "\n%s\n", noDataMessage)
		_, err := io.WriteString(w, b.String())
		return err
	}
	fmt.Fprintf(&b, "**Compared:** %s\n\n", describe(r))

	if len(r.Events) == 0 {
		fmt.Fprintf(&b, "### %s\n", noDropMessage)
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "### %d discounted editions found\n\n", len(r.Events))
	t := newEventTable(r, true)
	b.WriteString(t.RenderMarkdown())
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func renderTable(w io.Writer, r Report) error {
	if r.NoData {
		_, err := fmt.Fprintln(w, noDataMessage)
		return err
	}
	if len(r.Events) == 0 {
		_, err := fmt.Fprintln(w, noDropMessage)
		return err
	}
	t := newEventTable(r, false)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("%s (%s)", title, describe(r))
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func newEventTable(r Report, markdown bool) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Game", "Edition", "Old Price", "New Price", "Discount", "Since", "Duration"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
	})
	for _, e := range r.Events {
		oldPrice, newPrice := e.ReferencePriceText, e.CurrentPriceText
		if markdown {
			oldPrice, newPrice = "~"+oldPrice+"~", "**"+newPrice+"**"
		}
		t.AppendRow(table.Row{
			displayName(e),
			e.EditionName,
			oldPrice,
			newPrice,
			fmt.Sprintf("%.0f%%", e.DiscountPercent()),
			e.Since.Format("02.01.2006"),
			FormatDuration(e.DurationDays),
		})
	}
	return t
}

func describe(r Report) string {
	switch r.Mode {
	case ModeCompare:
		return "latest two snapshots, as of " + r.AsOf.Format(dateLayout)
	default:
		return fmt.Sprintf("last %d days, as of %s", r.LookbackDays, r.AsOf.Format(dateLayout))
	}
}
