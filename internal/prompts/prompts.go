// Package prompts serves the Dutch sentence templates spoken to callers.
// Texts live in a JSON file so the restaurant can reword them without a
// deploy; templates carry {field} placeholders filled at speak time.
package prompts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Required lists the prompt ids the call flow depends on. Missing ids do not
// stop the service, they are reported at startup so broken prompt files are
// caught before the first call.
var Required = []string{
	"greet_open_morning",
	"greet_open_afternoon",
	"greet_open_evening",
	"greet_closed",
	"reply_start_order",
	"ask_items",
	"ask_items_more",
	"item_added",
	"ask_pizza_which",
	"confirm_items",
	"ask_items_confirm_ok",
	"total_after_confirm",
	"ask_fulfilment",
	"ask_phone_for_delivery",
	"confirm_lookup_found",
	"confirm_lookup_missing",
	"ask_postcode_house",
	"pickup_eta",
	"delivery_eta",
	"closing_pickup",
	"closing_delivery",
	"fallback1",
	"say_prompt",
}

// Catalog is an immutable id-to-template map.
type Catalog struct {
	m map[string]string
}

// New builds a catalog from an in-memory map.
func New(m map[string]string) *Catalog {
	c := &Catalog{m: make(map[string]string, len(m))}
	for k, v := range m {
		c.m[k] = v
	}
	return c
}

// Empty returns a catalog without any templates. Every Get yields "".
func Empty() *Catalog { return New(nil) }

// Load reads a prompts JSON file (flat object of id to template).
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	return New(m), nil
}

// Get returns the raw template for id, or "" when absent.
func (c *Catalog) Get(id string) string { return c.m[id] }

// Render substitutes {field} placeholders in the template for id.
func (c *Catalog) Render(id string, vars map[string]string) string {
	out := c.m[id]
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// Missing reports which of the given ids have no template.
func (c *Catalog) Missing(ids ...string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := c.m[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
