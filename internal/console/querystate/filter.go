package querystate

import (
	"sort"
	"strings"
)

// FilterState holds the named filter fields of a list page.
// Empty values are never stored: setting a field to "" removes it.
type FilterState struct {
	values map[string]string
}

// NewFilterState builds a FilterState from a plain map, dropping empty values.
func NewFilterState(values map[string]string) FilterState {
	var f FilterState
	for k, v := range values {
		f.Set(k, v)
	}
	return f
}

// Set stores value under key. A blank value deletes the key.
func (f *FilterState) Set(key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return
	}
	if value == "" {
		delete(f.values, key)
		return
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[key] = value
}

// Get returns the value for key, or "" when the field is absent.
func (f FilterState) Get(key string) string {
	return f.values[key]
}

// Has reports whether key carries a value.
func (f FilterState) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

// Len returns the number of set fields.
func (f FilterState) Len() int {
	return len(f.values)
}

// Keys returns the set field names in sorted order.
func (f FilterState) Keys() []string {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the fields.
func (f FilterState) Map() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy.
func (f FilterState) Clone() FilterState {
	return NewFilterState(f.values)
}

// Equal reports whether both states carry the same fields and values.
func (f FilterState) Equal(other FilterState) bool {
	if len(f.values) != len(other.values) {
		return false
	}
	for k, v := range f.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// PageState is the pagination part of a list view.
type PageState struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset returns the row offset for SQL paging, capped at MaxOffset.
func (p PageState) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page > MaxPage(p.Limit) {
		return MaxOffset
	}
	return (p.Page - 1) * p.Limit
}
