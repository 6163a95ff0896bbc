package catalog

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed genres.yaml
var genresYAML []byte

// Genre is a browsable genre tile.
type Genre struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Path is the browse URL for the genre.
func (g Genre) Path() string {
	return "/genres/" + url.PathEscape(g.Name)
}

type genreFile struct {
	Fallback string  `yaml:"fallback"`
	Genres   []Genre `yaml:"genres"`
}

var (
	genresOnce sync.Once
	genreList  genreFile
	genresErr  error
)

func loadGenres() (genreFile, error) {
	genresOnce.Do(func() {
		if err := yaml.Unmarshal(genresYAML, &genreList); err != nil {
			genresErr = fmt.Errorf("catalog: parse genres: %w", err)
		}
	})
	return genreList, genresErr
}

// Genres lists the browsable genres in display order.
func Genres() []Genre {
	file, err := loadGenres()
	if err != nil {
		return nil
	}
	out := make([]Genre, len(file.Genres))
	copy(out, file.Genres)
	return out
}

// GenreColor returns the tile colour for name, or the neutral fallback.
func GenreColor(name string) string {
	file, err := loadGenres()
	if err != nil {
		return ""
	}
	for _, g := range file.Genres {
		if strings.EqualFold(g.Name, name) {
			return g.Color
		}
	}
	return file.Fallback
}

// GenreQuery turns a genre path segment into the value sent to the backend.
// Hyphenated slugs such as "slice-of-life" become "slice of life"; names that
// are hyphenated in the catalogue itself are kept.
func GenreQuery(segment string) string {
	segment = strings.TrimSpace(segment)
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	for _, g := range Genres() {
		if strings.EqualFold(g.Name, segment) {
			return g.Name
		}
	}
	return strings.ReplaceAll(segment, "-", " ")
}

// GenreLabel is the heading shown for a genre page.
func GenreLabel(segment string) string {
	return cases.Title(language.English).String(GenreQuery(segment))
}
