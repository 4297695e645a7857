package price

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_LocaleFormatted(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(nil)

	tests := []struct {
		in   string
		want float64
	}{
		{"1.749,00", 1749.00},
		{"2.099,00", 2099.00},
		{"  649,50 ", 649.50},
		{"99", 99},
		{"1.000.000,99", 1000000.99},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := n.Normalize(tt.in)
			assert.True(t, got.Known)
			assert.InDelta(t, tt.want, got.Value, 0.0001)
		})
	}
}

func TestNormalize_CurrencySuffix(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(nil)

	for _, in := range []string{"1.749,00 TL", "1.749,00\u00a0TL", "1.749,00TL", "₺1.749,00", "1.749,00 ₺", "1.749,00 TRY"} {
		got := n.Normalize(in)
		assert.True(t, got.Known, "input %q", in)
		assert.InDelta(t, 1749.0, got.Value, 0.0001, "input %q", in)
	}
	assert.False(t, n.Normalize("TL").Known)
}

func TestNormalize_FreeTokensAreZero(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(nil)

	for _, in := range []string{
		"Ücretsiz", "ÜCRETSİZ", "Free", "FREE to play", "PlayStation Plus'ta Dahil",
		"Included", "Oyna", "İndir", "Download", "Free Download",
	} {
		got := n.Normalize(in)
		assert.Equal(t, Of(0), got, "input %q", in)
	}
}

func TestNormalize_UnknownInputs(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(nil)

	for _, in := range []string{"", "   ", "Hata", "N/A", "abc", "NaN", "inf", "1,2,3"} {
		got := n.Normalize(in)
		assert.False(t, got.Known, "input %q", in)
		assert.Equal(t, Unknown, got)
	}
}

func TestNormalizePtr_Nil(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(nil)

	assert.Equal(t, Unknown, n.NormalizePtr(nil))

	s := "1.749,00"
	assert.Equal(t, Of(1749), n.NormalizePtr(&s))
}

func TestNormalize_NBSPIsTrimmed(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(nil)

	assert.Equal(t, Of(2099), n.Normalize("\u00a02.099,00\u00a0"))
}

func TestNormalize_CustomTokens(t *testing.T) {
	t.Parallel()
	n := NewNormalizer([]string{"N/A", " "})

	assert.Equal(t, Of(0), n.Normalize("n/a"))
	// Default tokens are not active once a custom list is given.
	assert.Equal(t, Unknown, n.Normalize("Free"))
}

func TestNormalize_EmptyTokenList(t *testing.T) {
	t.Parallel()
	n := NewNormalizer([]string{})

	assert.Equal(t, Unknown, n.Normalize("Ücretsiz"))
	assert.Equal(t, Of(10), n.Normalize("10,00"))
}

func TestNormalize_ConcurrentUse(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, Of(1749), n.Normalize("1.749,00"))
		}()
	}
	wg.Wait()
}

func TestAmount_Comparisons(t *testing.T) {
	t.Parallel()

	assert.True(t, Of(1).Less(Of(2)))
	assert.False(t, Of(2).Less(Of(2)))
	assert.False(t, Unknown.Less(Of(2)))
	assert.False(t, Of(1).Less(Unknown))

	assert.True(t, Of(3).Greater(Of(2)))
	assert.False(t, Of(2).Greater(Of(2)))
	assert.False(t, Unknown.Greater(Of(0)))
	assert.False(t, Of(0).Greater(Unknown))

	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "1749.00", Of(1749).String())
}
