package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ps-discounts/internal/model"
)

var (
	asOf      = time.Date(2025, 6, 22, 17, 2, 0, 0, time.UTC)
	generated = time.Date(2025, 6, 22, 18, 0, 0, 0, time.UTC)
)

func sampleEvents() []model.DiscountEvent {
	return []model.DiscountEvent{
		{ProductID: "3", ProductName: "Zelda-like", EditionName: "Standard", ReferencePrice: 1000, ReferencePriceText: "1.000,00", CurrentPrice: 500, CurrentPriceText: "500,00", AsOf: asOf, Since: asOf.Add(-72 * time.Hour), DurationDays: 3},
		{ProductID: "1", ProductName: "Astro Bot", EditionName: "Standard", ReferencePrice: 1749, ReferencePriceText: "1.749,00", CurrentPrice: 1399, CurrentPriceText: "1.399,00", AsOf: asOf, Since: asOf.Add(-24 * time.Hour), DurationDays: 1},
		{ProductID: "1", ProductName: "Astro Bot", EditionName: "Deluxe", ReferencePrice: 2099, ReferencePriceText: "2.099,00", CurrentPrice: 1599, CurrentPriceText: "1.599,00", AsOf: asOf, Since: asOf, DurationDays: 0},
		{ProductID: "2", EditionName: "Standard", ReferencePrice: 10, ReferencePriceText: "10,00", CurrentPrice: 5, CurrentPriceText: "5,00", AsOf: asOf, Since: asOf},
	}
}

func TestNew_SortsByDisplayNameThenEdition(t *testing.T) {
	t.Parallel()

	events := sampleEvents()
	r := New(ModeWindow, asOf, 7, events, generated)

	var got []string
	for _, e := range r.Events {
		got = append(got, displayName(e)+"/"+e.EditionName)
	}
	assert.Equal(t, []string{"2/Standard", "Astro Bot/Deluxe", "Astro Bot/Standard", "Zelda-like/Standard"}, got)
	// The input is left untouched.
	assert.Equal(t, "3", events[0].ProductID)
}

func TestNew_NilEvents(t *testing.T) {
	t.Parallel()

	r := New(ModeCompare, asOf, 0, nil, generated)
	assert.NotNil(t, r.Events)
	assert.Empty(t, r.Events)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "today", FormatDuration(0))
	assert.Equal(t, "today", FormatDuration(-2))
	assert.Equal(t, "1 day", FormatDuration(1))
	assert.Equal(t, "12 days", FormatDuration(12))
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{
		"markdown": FormatMarkdown,
		"MD":       FormatMarkdown,
		" table ":  FormatTable,
		"json":     FormatJSON,
		"yaml":     FormatYAML,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestRender_Markdown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, New(ModeWindow, asOf, 7, sampleEvents(), generated), FormatMarkdown))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# PlayStation Discount Report\n"))
	assert.Contains(t, out, "**Report date:** 22.06.2025 18:00")
	assert.Contains(t, out, "last 7 days")
	assert.Contains(t, out, "### 4 discounted editions found")
	assert.Contains(t, out, "| Game | Edition |")
	assert.Contains(t, out, "~1.749,00~")
	assert.Contains(t, out, "**1.399,00**")
	assert.Contains(t, out, "3 days")
	assert.Contains(t, out, "20%")
	assert.Less(t, strings.Index(out, "Astro Bot"), strings.Index(out, "Zelda-like"))
}

func TestRender_MarkdownNoDrops(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, New(ModeCompare, asOf, 0, nil, generated), FormatMarkdown))
	assert.Contains(t, buf.String(), "latest two snapshots")
	assert.Contains(t, buf.String(), noDropMessage)
	assert.NotContains(t, buf.String(), "| Game |")
}

func TestRender_MarkdownNoData(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Empty(ModeCompare, generated), FormatMarkdown))
	assert.Contains(t, buf.String(), noDataMessage)
	assert.NotContains(t, buf.String(), "Compared")
}

func TestRender_Table(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, New(ModeWindow, asOf, 7, sampleEvents(), generated), FormatTable))
	out := buf.String()
	assert.Contains(t, out, "╭")
	assert.Contains(t, out, "Astro Bot")
	assert.Contains(t, out, "1.399,00")
	assert.NotContains(t, out, "**1.399,00**")

	buf.Reset()
	require.NoError(t, Render(&buf, Empty(ModeWindow, generated), FormatTable))
	assert.Equal(t, noDataMessage+"\n", buf.String())
}

func TestRender_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, New(ModeWindow, asOf, 7, sampleEvents(), generated), FormatJSON))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, ModeWindow, decoded.Mode)
	assert.Equal(t, 7, decoded.LookbackDays)
	require.Len(t, decoded.Events, 4)
	assert.Equal(t, "2", decoded.Events[0].ProductID)
}

func TestRender_YAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, New(ModeCompare, asOf, 0, sampleEvents(), generated), FormatYAML))
	assert.Contains(t, buf.String(), "mode: compare")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded["events"], 4)
}

func TestRender_UnknownFormat(t *testing.T) {
	t.Parallel()

	err := Render(&bytes.Buffer{}, Report{}, Format("pdf"))
	assert.Error(t, err)
}
