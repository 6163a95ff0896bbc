package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenresLoadFromEmbeddedFile(t *testing.T) {
	genres := Genres()
	require.Len(t, genres, 24)
	assert.Equal(t, "Action", genres[0].Name)
	assert.Equal(t, "hsla(0, 70%, 30%, 0.85)", genres[0].Color)

	genres[0].Name = "mutated"
	assert.Equal(t, "Action", Genres()[0].Name, "callers get a copy")
}

func TestGenreColorFallsBack(t *testing.T) {
	assert.Equal(t, "hsla(120, 30%, 35%, 0.85)", GenreColor("slice of life"))
	assert.Equal(t, "hsla(0, 0%, 20%, 0.8)", GenreColor("Cooking"))
}

func TestGenreQueryAndLabel(t *testing.T) {
	cases := map[string]struct{ query, label string }{
		"slice-of-life":     {"slice of life", "Slice Of Life"},
		"Slice%20of%20Life": {"Slice of Life", "Slice Of Life"},
		"  horror ":         {"Horror", "Horror"},
		"sci-fi":            {"Sci-Fi", ""},
	}
	for segment, want := range cases {
		assert.Equal(t, want.query, GenreQuery(segment), segment)
		if want.label != "" {
			assert.Equal(t, want.label, GenreLabel(segment), segment)
		}
	}
}

func TestGenrePathEscapes(t *testing.T) {
	assert.Equal(t, "/genres/Slice%20of%20Life", Genre{Name: "Slice of Life"}.Path())
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "one piece", NormalizeQuery("  one　\tpiece\n"))
	assert.Equal(t, "ナルト", NormalizeQuery("ﾅﾙﾄ"), "half-width kana fold to full width")
	assert.Empty(t, NormalizeQuery(" \x00 "))
	assert.Len(t, []rune(NormalizeQuery(strings.Repeat("あ", 300))), maxQueryRunes)
}

func TestSeriesSlugRoundTrip(t *testing.T) {
	assert.Equal(t, "Attack-on-Titan", SeriesSlug(" Attack on Titan "))
	assert.Equal(t, "Attack on Titan", SeriesName("Attack-on-Titan"))
	assert.Equal(t, "Steins:Gate", SeriesName("Steins%3AGate"))
}

func TestRenderSynopsis(t *testing.T) {
	out := string(RenderSynopsis("Guts **fights**.\nSee https://example.com <img src=x onerror=alert(1)>"))
	assert.Contains(t, out, "<strong>fights</strong>")
	assert.Contains(t, out, `rel="nofollow`)
	assert.NotContains(t, out, "onerror")
	assert.Empty(t, RenderSynopsis("   "))
}
