package querystate

import (
	"net/url"
	"sort"
)

// Update is a partial write; an empty, "all" or "null" value removes the key
type Update map[string]string

// Params is an immutable view of the address parameters
type Params struct {
	values url.Values
}

// NewParams copies v into a Params
func NewParams(v url.Values) Params {
	return Params{values: cloneValues(v)}
}

// Read returns the current value of key, or def when it is absent or empty
func (p Params) Read(key, def string) string {
	if p.values == nil {
		return def
	}
	if v := p.values.Get(key); v != "" {
		return v
	}
	return def
}

// Write merges update into the parameters and returns the result. Writing any
// key other than page resets page to 1.
func (p Params) Write(update Update) Params {
	next := cloneValues(p.values)

	resetPage := false
	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := update[k]
		if k != KeyPage {
			resetPage = true
		}
		if isCleared(v) {
			next.Del(k)
			continue
		}
		next.Set(k, v)
	}

	if resetPage {
		next.Set(KeyPage, "1")
	}

	return Params{values: next}
}

// State decodes the parameters
func (p Params) State(size int) State {
	return FromValues(p.values, size)
}

// Values returns a copy of the raw parameters
func (p Params) Values() url.Values {
	return cloneValues(p.values)
}

// Encode returns the query string, keys sorted
func (p Params) Encode() string {
	if p.values == nil {
		return ""
	}
	return p.values.Encode()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
