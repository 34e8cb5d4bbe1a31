package analytics

import (
	"strings"

	"github.com/pagelens/pagelens/internal/event"
)

// Operator is a property filter comparison.
type Operator string

const (
	OpEquals   Operator = "equals"
	OpContains Operator = "contains"
)

// Filter matches one property against a value. Filters combine with AND.
type Filter struct {
	Key   string   `json:"key"`
	Op    Operator `json:"op"`
	Value string   `json:"value"`
}

type Filters []Filter

// ParseFilters compiles a comma-joined "key:operator:value" list into a
// filter set. Malformed triples (missing parts, unknown operator) are
// dropped rather than failing the whole query.
func ParseFilters(raw string) Filters {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var filters Filters
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 3)
		if len(fields) != 3 {
			continue
		}
		key, op, value := fields[0], Operator(fields[1]), fields[2]
		if key == "" || value == "" {
			continue
		}
		if op != OpEquals && op != OpContains {
			continue
		}
		filters = append(filters, Filter{Key: key, Op: op, Value: value})
	}
	return filters
}

// Match reports whether the property bag satisfies every filter. An absent
// key fails the filter for both operators; an empty filter set accepts
// everything.
func (fs Filters) Match(props event.Properties) bool {
	for _, f := range fs {
		got, ok := props.GetString(f.Key)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEquals:
			if got != f.Value {
				return false
			}
		case OpContains:
			if !strings.Contains(got, f.Value) {
				return false
			}
		}
	}
	return true
}

// CanonicalString renders the filter set back into its wire form, used for
// cache keying.
func (fs Filters) CanonicalString() string {
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		parts = append(parts, f.Key+":"+string(f.Op)+":"+f.Value)
	}
	return strings.Join(parts, ",")
}
