// Package routing maps final triage categories to department addresses.
package routing

import (
	"sort"
	"strings"
)

// Decision is the routing outcome for one message. Intervention is true
// when the resolved destination differs from the original recipient.
type Decision struct {
	Category     string `json:"category"`
	Destination  string `json:"destination"`
	Intervention bool   `json:"intervention"`
}

// Table is the static category -> destination mapping. It never invents a
// destination: unknown categories route back to the original recipient.
type Table struct {
	routes map[string]string
}

// NewTable builds a table from configuration, normalizing category keys to
// lower case.
func NewTable(routes map[string]string) *Table {
	normalized := make(map[string]string, len(routes))
	for cat, dest := range routes {
		cat = strings.ToLower(strings.TrimSpace(cat))
		dest = strings.TrimSpace(dest)
		if cat != "" && dest != "" {
			normalized[cat] = dest
		}
	}
	return &Table{routes: normalized}
}

// Resolve maps the final category to its destination. On a table miss the
// message keeps its original destination and no intervention is recorded.
func (t *Table) Resolve(category, originalDestination string) Decision {
	category = strings.ToLower(strings.TrimSpace(category))
	if dest, ok := t.routes[category]; ok {
		return Decision{
			Category:     category,
			Destination:  dest,
			Intervention: !strings.EqualFold(dest, originalDestination),
		}
	}
	return Decision{
		Category:     category,
		Destination:  originalDestination,
		Intervention: false,
	}
}

// Categories returns the mapped categories in sorted order.
func (t *Table) Categories() []string {
	out := make([]string, 0, len(t.routes))
	for cat := range t.routes {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Routes returns a copy of the mapping for the ops API.
func (t *Table) Routes() map[string]string {
	out := make(map[string]string, len(t.routes))
	for cat, dest := range t.routes {
		out[cat] = dest
	}
	return out
}
