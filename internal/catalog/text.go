package catalog

import (
	"bytes"
	"html/template"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/unicode/norm"
)

const maxQueryRunes = 100

var (
	synopsisMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	synopsisPolicy = newSynopsisPolicy()
)

func newSynopsisPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	policy.AllowAttrs("loading").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

// RenderSynopsis converts a markdown description into sanitised HTML.
func RenderSynopsis(markdown string) template.HTML {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := synopsisMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(markdown))
	}
	return template.HTML(synopsisPolicy.SanitizeBytes(buf.Bytes()))
}

// NormalizeQuery folds compatibility characters, collapses whitespace and caps
// the length of a search query. Full-width input such as "ＮＡＲＵＴＯ" becomes "NARUTO".
func NormalizeQuery(raw string) string {
	folded := norm.NFKC.String(raw)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	query := strings.Join(fields, " ")
	if runes := []rune(query); len(runes) > maxQueryRunes {
		query = strings.TrimSpace(string(runes[:maxQueryRunes]))
	}
	return query
}

// SeriesSlug builds the series path segment from a title.
func SeriesSlug(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), " ", "-")
}

// SeriesName recovers the title sent to the backend from a series path segment.
func SeriesName(slug string) string {
	name := strings.ReplaceAll(slug, "%3A", ":")
	name = strings.ReplaceAll(name, "%3a", ":")
	return strings.ReplaceAll(name, "-", " ")
}
