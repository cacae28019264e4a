package menu

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/antoniostano/sara/internal/dutch"
)

// Line is one parsed order position.
type Line struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Qty      int     `json:"qty"`
	Category string  `json:"category,omitempty"`
}

// Fuzzy matching is a last resort for transcription slips ("margarita" for
// "margherita"). Short tokens score high against almost anything, so only
// words of four letters and up take part.
const (
	fuzzyThreshold = 0.84
	fuzzyMinLen    = 4
)

var qtyPrefix = regexp.MustCompile(`^(\d+)\s+(.+)$`)

// Category words name a family, not an item; "twee pizza's" must lead to the
// which-pizza question instead of fuzzy-matching the first pizza on the menu.
var categoryWords = map[string]bool{
	"pizza": true, "pizzas": true,
	"schotel": true, "schotels": true,
	"pasta": true, "pastas": true,
}

// ParseOrder extracts menu lines from a spoken utterance. The text is split
// on connectives and each segment is matched on its own. A segment with a
// quantity prefix ("twee ...", "3 ...") gets the full matcher on the
// remainder; a bare segment only matches an item name appearing verbatim.
// Duplicate codes are dropped. When the caller says pizza but no pizza was
// matched, nothing is returned so the flow can ask which pizza is wanted.
func (x *Index) ParseOrder(text string) []Line {
	var lines []Line
	seen := make(map[string]bool)
	for _, seg := range dutch.SplitSegments(text) {
		norm := dutch.Normalize(seg)
		if norm == "" {
			continue
		}
		qty, rest, prefixed := quantity(norm)
		var it Item
		var ok bool
		if prefixed {
			it, ok = x.match(rest)
		} else {
			it, ok = x.scan(norm)
		}
		if !ok || seen[it.Code] {
			continue
		}
		seen[it.Code] = true
		lines = append(lines, Line{Code: it.Code, Name: it.Name, Price: it.Price, Qty: qty, Category: it.Category})
	}

	if MentionsPizza(text) && !containsPizza(lines) {
		return nil
	}
	return lines
}

// quantity splits a leading count off a normalised segment: digits or the
// number words one through ten. Without a prefix the quantity is one.
func quantity(norm string) (qty int, rest string, prefixed bool) {
	if m := qtyPrefix.FindStringSubmatch(norm); m != nil {
		n := 0
		for _, r := range m[1] {
			n = n*10 + int(r-'0')
		}
		if n < 1 {
			n = 1
		}
		return n, m[2], true
	}
	word, tail, found := strings.Cut(norm, " ")
	if found {
		if n, ok := dutch.NumberWord(word); ok {
			return n, tail, true
		}
	}
	return 1, norm, false
}

// match finds the best menu item for the tail of a quantified segment.
// A verbatim name wins, then the largest token overlap in menu order, then
// fuzzy comparison.
func (x *Index) match(norm string) (Item, bool) {
	if it, ok := x.scan(norm); ok {
		return it, true
	}

	segTokens := matchTokens(norm)
	best := -1
	bestOverlap := 0
	for i, it := range x.items {
		overlap := 0
		for _, t := range segTokens {
			for _, u := range it.tokens {
				if t == u {
					overlap++
					break
				}
			}
		}
		if overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	if bestOverlap > 0 {
		return x.items[best], true
	}

	return x.fuzzy(segTokens)
}

// scan returns the first menu item whose normalised name occurs verbatim in
// the segment.
func (x *Index) scan(norm string) (Item, bool) {
	for _, it := range x.items {
		if strings.Contains(norm, it.norm) {
			return it, true
		}
	}
	return Item{}, false
}

func (x *Index) fuzzy(segTokens []string) (Item, bool) {
	for _, it := range x.items {
		for _, t := range segTokens {
			if len(t) < fuzzyMinLen || categoryWords[t] {
				continue
			}
			for _, u := range it.tokens {
				if len(u) < fuzzyMinLen || categoryWords[u] {
					continue
				}
				if matchr.JaroWinkler(t, u, false) >= fuzzyThreshold {
					return it, true
				}
			}
		}
	}
	return Item{}, false
}

// MentionsPizza reports whether the utterance talks about pizza at all; the
// dialogue uses it to ask which pizza when no specific one matched.
func MentionsPizza(text string) bool {
	for _, w := range strings.Fields(dutch.Normalize(text)) {
		if w == "pizza" || w == "pizzas" {
			return true
		}
	}
	return false
}

func containsPizza(lines []Line) bool {
	for _, l := range lines {
		if strings.Contains(dutch.Normalize(l.Name), "pizza") {
			return true
		}
	}
	return false
}
