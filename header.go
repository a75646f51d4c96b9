package wagi

import "strings"

// Header is an ordered multimap of HTTP header fields. Lookup is
// case-insensitive; iteration yields names in first-insertion order using
// the spelling of each name's first occurrence.
//
// The zero value is ready to use.
type Header struct {
	order []string            // lower-cased names, insertion order
	name  map[string]string   // lower-cased name -> first-seen spelling
	value map[string][]string // lower-cased name -> values, insertion order
}

// Add appends value under name, creating the field if absent.
func (h *Header) Add(name, value string) {
	key := h.init(name)
	h.value[key] = append(h.value[key], value)
}

// Set replaces all values under name with value.
func (h *Header) Set(name, value string) {
	key := h.init(name)
	h.value[key] = []string{value}
}

// Get returns the first value under name, or "" if the field is absent.
func (h *Header) Get(name string) string {
	vs := h.value[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values under name in insertion order.
func (h *Header) Values(name string) []string {
	return h.value[strings.ToLower(name)]
}

// Has reports whether the field is present.
func (h *Header) Has(name string) bool {
	_, ok := h.value[strings.ToLower(name)]
	return ok
}

// Names returns the field names in first-insertion order.
func (h *Header) Names() []string {
	names := make([]string, len(h.order))
	for i, key := range h.order {
		names[i] = h.name[key]
	}
	return names
}

// Len returns the number of distinct field names.
func (h *Header) Len() int {
	return len(h.order)
}

func (h *Header) init(name string) string {
	key := strings.ToLower(name)
	if h.value == nil {
		h.name = make(map[string]string)
		h.value = make(map[string][]string)
	}
	if _, ok := h.value[key]; !ok {
		h.order = append(h.order, key)
		h.name[key] = name
	}
	return key
}
