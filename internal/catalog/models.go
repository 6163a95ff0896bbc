package catalog

import (
	"bytes"
	"cmp"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Manga is a series in the catalog.
type Manga struct {
	ID          string
	Title       string
	Description string
	Authors     []string
	Genres      []string
	CoverImage  string
	Gallery     []string
	Rating      float64
}

// Slug is the path segment used for the series page.
func (m Manga) Slug() string { return SeriesSlug(m.Title) }

// Volume is a purchasable volume of a series.
type Volume struct {
	ID          string
	MangaID     string
	MangaTitle  string
	Title       string
	Number      int
	Description string
	CoverImage  string
	Price       decimal.Decimal
	Stock       int
}

// InStock reports whether the backend has stock for the volume.
func (v Volume) InStock() bool { return v.Stock > 0 }

func sortVolumes(vols []Volume) {
	slices.SortStableFunc(vols, func(a, b Volume) int {
		return cmp.Compare(a.Number, b.Number)
	})
}

// Title is an entry of the all-titles listing used by admin pickers.
type Title struct {
	MangaID string
	Title   string
}

// flexString accepts JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects, arrays and booleans carry no usable text.
		*f = ""
		return nil
	}
	*f = flexString(n.String())
	return nil
}

// flexNumber accepts JSON numbers and numeric strings; anything else is zero.
type flexNumber string

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		*f = ""
		return nil
	}
	*f = flexNumber(strings.TrimSpace(string(s)))
	return nil
}

func (f flexNumber) decimal() decimal.Decimal {
	d, err := decimal.NewFromString(string(f))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (f flexNumber) int() int {
	if n, err := strconv.Atoi(string(f)); err == nil {
		return n
	}
	if v, err := strconv.ParseFloat(string(f), 64); err == nil {
		return int(v)
	}
	return 0
}

func (f flexNumber) float() float64 {
	v, _ := strconv.ParseFloat(string(f), 64)
	return v
}

// flexStrings accepts an array of strings or a single comma separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		var s flexString
		_ = s.UnmarshalJSON(data)
		*f = splitList(string(s))
		return nil
	}
	var items []flexString
	if err := json.Unmarshal(data, &items); err != nil {
		*f = nil
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(string(item)); v != "" {
			out = append(out, v)
		}
	}
	*f = out
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type mangaWire struct {
	ID          flexString  `json:"_id"`
	MangaID     flexString  `json:"manga_id"`
	Title       flexString  `json:"title"`
	Description flexString  `json:"description"`
	Authors     flexStrings `json:"authors"`
	Genres      flexStrings `json:"genres"`
	CoverImage  flexString  `json:"cover_image"`
	Gallery     flexStrings `json:"gallery"`
	Rating      flexNumber  `json:"rating"`
}

func (w mangaWire) toManga() Manga {
	id := string(w.MangaID)
	if id == "" {
		id = string(w.ID)
	}
	return Manga{
		ID:          id,
		Title:       string(w.Title),
		Description: string(w.Description),
		Authors:     []string(w.Authors),
		Genres:      []string(w.Genres),
		CoverImage:  string(w.CoverImage),
		Gallery:     []string(w.Gallery),
		Rating:      w.Rating.float(),
	}
}

type volumeWire struct {
	ID           flexString `json:"_id"`
	VolumeID     flexString `json:"volume_id"`
	MangaID      flexString `json:"manga_id"`
	MangaTitle   flexString `json:"manga_title"`
	VolumeTitle  flexString `json:"volume_title"`
	Title        flexString `json:"title"`
	VolumeNumber flexNumber `json:"volume_number"`
	Description  flexString `json:"description"`
	CoverImage   flexString `json:"cover_image"`
	CoverURL     flexString `json:"cover_image_url"`
	Price        flexNumber `json:"price"`
	Stock        flexNumber `json:"stock"`
}

func (w volumeWire) toVolume() Volume {
	id := string(w.VolumeID)
	if id == "" {
		id = string(w.ID)
	}
	title := string(w.VolumeTitle)
	if title == "" {
		title = string(w.Title)
	}
	cover := string(w.CoverImage)
	if cover == "" {
		cover = string(w.CoverURL)
	}
	price := w.Price.decimal()
	if price.IsNegative() {
		price = decimal.Zero
	}
	return Volume{
		ID:          id,
		MangaID:     string(w.MangaID),
		MangaTitle:  string(w.MangaTitle),
		Title:       title,
		Number:      w.VolumeNumber.int(),
		Description: string(w.Description),
		CoverImage:  cover,
		Price:       price,
		Stock:       w.Stock.int(),
	}
}

type titleWire struct {
	ID      flexString `json:"_id"`
	MangaID flexString `json:"manga_id"`
	Title   flexString `json:"title"`
}

func (w titleWire) toTitle() Title {
	id := string(w.MangaID)
	if id == "" {
		id = string(w.ID)
	}
	return Title{MangaID: id, Title: string(w.Title)}
}
