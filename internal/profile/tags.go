package profile

import "strings"

// Tags is a deduplicated, order-preserving set of non-empty labels.
// Membership is case-insensitive; the first spelling seen is kept for display.
type Tags struct {
	items []string
	keys  map[string]struct{}
}

func NewTags(values ...string) Tags {
	t := Tags{keys: make(map[string]struct{}, len(values))}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := normalizeTag(v)
		if _, seen := t.keys[key]; seen {
			continue
		}
		t.keys[key] = struct{}{}
		t.items = append(t.items, v)
	}
	return t
}

func (t Tags) Len() int { return len(t.items) }

// Values returns a copy of the labels in insertion order.
func (t Tags) Values() []string {
	out := make([]string, len(t.items))
	copy(out, t.items)
	return out
}

func (t Tags) Contains(v string) bool {
	_, ok := t.keys[normalizeTag(v)]
	return ok
}

// Intersect returns the labels of t that are also in other, in t's order.
func (t Tags) Intersect(other Tags) []string {
	var shared []string
	for _, v := range t.items {
		if other.Contains(v) {
			shared = append(shared, v)
		}
	}
	return shared
}

func normalizeTag(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
