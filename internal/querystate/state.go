// Package querystate keeps the product list filters and pagination in the
// navigable address, so that a reload or a shared link restores the view.
package querystate

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Address parameter names
const (
	KeyQuery    = "query"
	KeyPage     = "page"
	KeyCategory = "category"
	KeyMinPrice = "minPrice"
	KeyMaxPrice = "maxPrice"
)

// DefaultPageSize is the page size used when a view does not set one
const DefaultPageSize = 10

// State is the typed projection of the address parameters
type State struct {
	Query    string
	Page     int // 1-based
	Category string
	MinPrice float64
	MaxPrice float64
	Size     int
}

// FromValues reads a State from address parameters. Invalid numbers are
// treated as absent; a missing category means "all".
func FromValues(v url.Values, size int) State {
	if size <= 0 {
		size = DefaultPageSize
	}
	p := Params{values: v}
	s := State{
		Query:    strings.TrimSpace(p.Read(KeyQuery, "")),
		Page:     ParsePage(p.Read(KeyPage, "")),
		Category: p.Read(KeyCategory, "all"),
		MinPrice: ParsePrice(p.Read(KeyMinPrice, "")),
		MaxPrice: ParsePrice(p.Read(KeyMaxPrice, "")),
		Size:     size,
	}
	if isCleared(s.Category) {
		s.Category = "all"
	}
	return s
}

// Values encodes the state as address parameters, omitting defaults
func (s State) Values() url.Values {
	v := url.Values{}
	if s.Query != "" {
		v.Set(KeyQuery, s.Query)
	}
	if s.Page > 1 {
		v.Set(KeyPage, strconv.Itoa(s.Page))
	}
	if !isCleared(s.Category) {
		v.Set(KeyCategory, s.Category)
	}
	if p := FormatPrice(s.MinPrice); p != "" {
		v.Set(KeyMinPrice, p)
	}
	if p := FormatPrice(s.MaxPrice); p != "" {
		v.Set(KeyMaxPrice, p)
	}
	return v
}

// HasFilters reports whether any filter other than pagination is active
func (s State) HasFilters() bool {
	return s.Query != "" || !isCleared(s.Category) || s.MinPrice > 0 || s.MaxPrice > 0
}

// ServerPage is the 0-based page index the API expects
func (s State) ServerPage() int {
	if s.Page < 1 {
		return 0
	}
	return s.Page - 1
}

// ParsePage parses a 1-based page number; anything invalid is page 1
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParsePrice parses a price bound; invalid or non-positive values are absent (0)
func ParsePrice(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FormatPrice formats a price bound for the address; absent bounds format as ""
func FormatPrice(f float64) string {
	if f <= 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isCleared(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "all") || v == "null"
}
