package view

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"

	"quantum-stock/internal/domain"
	"quantum-stock/internal/querystate"
	"quantum-stock/internal/repository"
	"quantum-stock/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePage() *domain.PageResult {
	return &domain.PageResult{
		Products: []domain.Product{
			{ID: "1", Name: "Laptop", Description: "14 pulgadas", Category: "ELECTRONICS", Price: 999.5, Quantity: 3, MinQuantity: 5},
			{ID: "2", Name: "Silla", Description: "Oficina", Category: "HOME", Price: 50, Quantity: 0, MinQuantity: 2},
		},
		TotalElements: 32,
		TotalPages:    4,
		CurrentPage:   1,
	}
}

func renderStock(t *testing.T, page StockPage) string {
	t.Helper()
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Stock(&buf, page))
	return buf.String()
}

func TestStock_RendersRowsAndPagination(t *testing.T) {
	state := querystate.FromValues(url.Values{"page": {"2"}, "query": {"lap"}}, 10)
	v := stock.BuildView(state, "/stock?page=2&query=lap", samplePage(), nil)

	html := renderStock(t, NewStockPage(v, "admin", true))

	assert.Contains(t, html, "Mostrando 11 a 20 de 32 productos")
	assert.Contains(t, html, "Laptop")
	assert.Contains(t, html, "Stock bajo")
	assert.Contains(t, html, "Sin stock")
	assert.Contains(t, html, "$999.50")
	assert.Contains(t, html, `href="/stock?page=3&amp;query=lap"`)
	assert.Contains(t, html, `action="/stock/filters?page=2&amp;query=lap"`)
	assert.Contains(t, html, "<strong>2</strong>")
	assert.NotContains(t, html, `role="alert"`)
}

func TestStock_RendersBannerAndEmptyState(t *testing.T) {
	state := querystate.FromValues(url.Values{}, 10)
	v := stock.BuildView(state, "/stock", nil, repository.ErrUnavailable)

	html := renderStock(t, NewStockPage(v, "admin", true))

	assert.Contains(t, html, "No se pudo conectar con el servidor")
	assert.Contains(t, html, "No se encontraron productos")
	assert.NotContains(t, html, `class="pagination"`)
}

func TestStock_EscapesProductText(t *testing.T) {
	page := &domain.PageResult{
		Products:      []domain.Product{{ID: "9", Name: "<script>x</script>", Category: "BOOKS", Price: 1, Quantity: 1}},
		TotalElements: 1,
		TotalPages:    1,
	}
	v := stock.BuildView(querystate.FromValues(url.Values{}, 10), "/stock", page, nil)

	html := renderStock(t, NewStockPage(v, "admin", true))

	assert.NotContains(t, html, "<script>x</script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestNewStockPage_SelectsCategory(t *testing.T) {
	state := querystate.FromValues(url.Values{"category": {"BOOKS"}}, 10)
	page := NewStockPage(stock.BuildView(state, "/stock?category=BOOKS", nil, nil), "ana", true)

	require.Len(t, page.Categories, len(domain.Categories)+1)
	assert.Equal(t, string(domain.CategoryAll), page.Categories[0].Value)
	assert.False(t, page.Categories[0].Selected)

	selected := 0
	for _, c := range page.Categories {
		if c.Selected {
			selected++
			assert.Equal(t, "BOOKS", c.Value)
		}
	}
	assert.Equal(t, 1, selected)
}

func TestPageURL_KeepsFilters(t *testing.T) {
	state := querystate.State{Query: "mesa", Page: 4, Category: "BOOKS", MinPrice: 10, Size: 10}

	got := pageURL(state, 2)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/stock", u.Path)
	q := u.Query()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "mesa", q.Get("query"))
	assert.Equal(t, "BOOKS", q.Get("category"))
	assert.Equal(t, "10", q.Get("minPrice"))
}

func TestHome_Renders(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Home(&buf, HomePage{Username: "ana", Message: "Sin permisos"}))

	out := buf.String()
	assert.True(t, strings.Contains(out, "ana"))
	assert.Contains(t, out, "Sin permisos")
	assert.Contains(t, out, `href="/stock"`)
}

func TestRender_FailureWritesNothing(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = r.render(&buf, "missing.html", nil)

	assert.Error(t, err)
	assert.Zero(t, buf.Len())
	assert.False(t, errors.Is(err, repository.ErrServer))
}
