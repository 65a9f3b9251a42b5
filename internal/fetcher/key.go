package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"quantum-stock/internal/querystate"
	"quantum-stock/internal/repository"
)

// Key identifies one page request. A nil *Key means "do not fetch".
type Key struct {
	Query    string
	Category string
	MinPrice float64
	MaxPrice float64
	Page     int // 1-based
	Size     int
	Token    string
}

// KeyFor builds the key for state and token. It returns nil when there is no
// token yet.
func KeyFor(s querystate.State, token string) *Key {
	if token == "" {
		return nil
	}
	return &Key{
		Query:    s.Query,
		Category: s.Category,
		MinPrice: s.MinPrice,
		MaxPrice: s.MaxPrice,
		Page:     s.Page,
		Size:     s.Size,
		Token:    token,
	}
}

// String is the cache identity. The token only appears as a digest.
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.Token))
	return fmt.Sprintf("q=%s|c=%s|min=%s|max=%s|p=%d|s=%d|t=%s",
		strconv.Quote(k.Query),
		k.Category,
		strconv.FormatFloat(k.MinPrice, 'f', -1, 64),
		strconv.FormatFloat(k.MaxPrice, 'f', -1, 64),
		k.Page,
		k.Size,
		hex.EncodeToString(sum[:8]),
	)
}

// Params converts the key to API list parameters; the page becomes 0-based
func (k Key) Params() repository.ListParams {
	page := k.Page - 1
	if page < 0 {
		page = 0
	}
	return repository.ListParams{
		Name:     k.Query,
		Category: k.Category,
		MinPrice: k.MinPrice,
		MaxPrice: k.MaxPrice,
		Page:     page,
		Size:     k.Size,
	}
}
