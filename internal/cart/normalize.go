package cart

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultQuantity = 1

// Normalize extracts the canonical item list from a cart response's data field.
//
// data may be a document or an array whose first element is the document; its
// items field is read and anything else yields an empty list. Missing strings
// become "", a missing price becomes 0 and a missing or unreadable quantity
// becomes 1. Items whose quantity is explicitly zero or negative are dropped and
// duplicates of the same (volume_id, type) are merged into the first one.
func Normalize(data json.RawMessage) []LineItem {
	doc := bytes.TrimSpace(data)
	if len(doc) > 0 && doc[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(doc, &docs); err != nil || len(docs) == 0 {
			return []LineItem{}
		}
		doc = bytes.TrimSpace(docs[0])
	}

	var envelope struct {
		Items json.RawMessage `json:"items"`
	}
	if len(doc) == 0 || doc[0] != '{' || json.Unmarshal(doc, &envelope) != nil {
		return []LineItem{}
	}
	return NormalizeList(envelope.Items)
}

// NormalizeList applies the item rules of Normalize to a bare JSON array.
// Anything that is not an array yields an empty list.
func NormalizeList(raw json.RawMessage) []LineItem {
	var entries []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' || json.Unmarshal(trimmed, &entries) != nil {
		return []LineItem{}
	}

	items := make([]LineItem, 0, len(entries))
	index := make(map[Key]int, len(entries))
	for _, entry := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			continue
		}
		item := itemFromFields(fields)
		if item.Quantity <= 0 {
			continue
		}
		if at, ok := index[item.Key()]; ok {
			items[at].Quantity += item.Quantity
			continue
		}
		index[item.Key()] = len(items)
		items = append(items, item)
	}
	return items
}

func itemFromFields(fields map[string]json.RawMessage) LineItem {
	price := decimalField(fields["price"])
	if price.IsNegative() {
		price = decimal.Zero
	}
	return LineItem{
		VolumeID:      stringField(fields["volume_id"]),
		MangaTitle:    stringField(fields["manga_title"]),
		VolumeTitle:   stringField(fields["volume_title"]),
		Kind:          ParseKind(stringField(fields["type"])),
		CoverImageURL: stringField(fields["cover_image"]),
		UnitPrice:     price,
		Quantity:      intField(fields["quantity"], defaultQuantity),
	}
}

// stringField reads a JSON string, or the literal text of a number; anything else is "".
func stringField(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func decimalField(raw json.RawMessage) decimal.Decimal {
	text := numericText(raw)
	if text == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func intField(raw json.RawMessage, fallback int) int {
	text := numericText(raw)
	if text == "" {
		return fallback
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return int(f)
}

// numericText returns the textual form of a JSON number or numeric string.
func numericText(raw json.RawMessage) string {
	s := stringField(raw)
	return strings.TrimSpace(s)
}
