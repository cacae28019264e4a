// Package menu loads the restaurant menu and matches spoken order text
// against it.
package menu

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/antoniostano/sara/internal/dutch"
)

// Item is one orderable menu entry.
type Item struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`

	norm   string
	tokens []string
}

// Index holds the menu in file order with precomputed matching forms.
type Index struct {
	items []Item
}

type rawItem struct {
	Code      string      `json:"code"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Naam      string      `json:"naam"`
	Price     json.Number `json:"price"`
	Prijs     json.Number `json:"prijs"`
	Category  string      `json:"category"`
	Categorie string      `json:"categorie"`
}

type rawCategory struct {
	Name  string    `json:"name"`
	Naam  string    `json:"naam"`
	Items []rawItem `json:"items"`
}

// Load reads a menu file. The file may be a flat array of items, an object
// with an "items" array, or an object with "categories" each holding items.
// Field aliases name/naam, price/prijs, code/id and category/categorie are
// accepted.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	idx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse menu %s: %w", path, err)
	}
	return idx, nil
}

// Parse builds an Index from raw menu JSON.
func Parse(data []byte) (*Index, error) {
	var flat []rawItem
	if err := json.Unmarshal(data, &flat); err == nil {
		return NewIndex(cook(flat, "")), nil
	}

	var wrapped struct {
		Items      []rawItem     `json:"items"`
		Categories []rawCategory `json:"categories"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	var items []Item
	for _, c := range wrapped.Categories {
		name := c.Name
		if name == "" {
			name = c.Naam
		}
		items = append(items, cook(c.Items, name)...)
	}
	items = append(items, cook(wrapped.Items, "")...)
	if len(items) == 0 {
		return nil, fmt.Errorf("no usable items")
	}
	return NewIndex(items), nil
}

func cook(raw []rawItem, category string) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		name := r.Name
		if name == "" {
			name = r.Naam
		}
		price := number(r.Price)
		if price == 0 {
			price = number(r.Prijs)
		}
		if name == "" || price <= 0 {
			continue
		}
		code := r.Code
		if code == "" {
			code = r.ID
		}
		cat := r.Category
		if cat == "" {
			cat = r.Categorie
		}
		if cat == "" {
			cat = category
		}
		items = append(items, Item{Code: code, Name: name, Price: price, Category: cat})
	}
	return items
}

func number(n json.Number) float64 {
	if n == "" {
		return 0
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

// NewIndex normalises the items and derives missing codes from the name.
func NewIndex(items []Item) *Index {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		it.norm = dutch.Normalize(it.Name)
		if it.norm == "" {
			continue
		}
		if it.Code == "" {
			it.Code = deriveCode(it.norm)
		}
		it.tokens = matchTokens(it.norm)
		out = append(out, it)
	}
	return &Index{items: out}
}

// Empty returns an index with no items. Parsing against it never matches.
func Empty() *Index { return &Index{} }

func (x *Index) Len() int { return len(x.items) }

// Items returns the menu entries in file order.
func (x *Index) Items() []Item {
	out := make([]Item, len(x.items))
	copy(out, x.items)
	return out
}

func deriveCode(norm string) string {
	code := strings.ReplaceAll(norm, " ", "_")
	if len(code) > 24 {
		code = code[:24]
	}
	return code
}

// matchTokens keeps the words that carry meaning; one- and two-letter words
// ("de", "la") only produce noise overlap.
func matchTokens(norm string) []string {
	var out []string
	for _, w := range strings.Fields(norm) {
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}
