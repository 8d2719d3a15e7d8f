package model

import "sort"

// Properties is an insertion-ordered mapping of property keys to canonical
// values. Values are one of string, int64, bool, []string, []int64,
// map[string]string, []map[string]any or map[string]any.
type Properties struct {
	keys   []string
	values map[string]any
}

// Set stores a value, keeping the position of an existing key
func (p *Properties) Set(key string, value any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value for key
func (p Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is set
func (p Properties) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Keys returns the keys in insertion order
func (p Properties) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Len returns the number of properties
func (p Properties) Len() int {
	return len(p.keys)
}

// String returns a string property or the empty string
func (p Properties) String(key string) string {
	s, _ := p.values[key].(string)
	return s
}

// Int returns an integer property
func (p Properties) Int(key string) (int64, bool) {
	i, ok := p.values[key].(int64)
	return i, ok
}

// Bool returns a boolean property or false
func (p Properties) Bool(key string) bool {
	b, _ := p.values[key].(bool)
	return b
}

// StringList returns a copy of a string list property
func (p Properties) StringList(key string) []string {
	l, _ := p.values[key].([]string)
	return append([]string(nil), l...)
}

// IntList returns a copy of an integer list property
func (p Properties) IntList(key string) []int64 {
	l, _ := p.values[key].([]int64)
	return append([]int64(nil), l...)
}

// StringMap returns a copy of a string map property
func (p Properties) StringMap(key string) map[string]string {
	m, ok := p.values[key].(map[string]string)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MapList returns a deep copy of a list-of-maps property
func (p Properties) MapList(key string) []map[string]any {
	l, ok := p.values[key].([]map[string]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(l))
	for i, m := range l {
		out[i] = cloneValue(m).(map[string]any)
	}
	return out
}

// Map returns a deep copy of a free-form map property
func (p Properties) Map(key string) map[string]any {
	m, ok := p.values[key].(map[string]any)
	if !ok {
		return nil
	}
	return cloneValue(m).(map[string]any)
}

// Clone returns a deep copy
func (p Properties) Clone() Properties {
	out := Properties{
		keys:   append([]string(nil), p.keys...),
		values: make(map[string]any, len(p.values)),
	}
	for k, v := range p.values {
		out.values[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []int64:
		return append([]int64(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, m := range t {
			out[i] = cloneValue(m).(map[string]any)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	}
	return v
}

// SortedKeys returns the keys of a string map in lexical order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
