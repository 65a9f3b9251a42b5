// Package view renders the server-side HTML pages.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"

	"quantum-stock/internal/domain"
	"quantum-stock/internal/querystate"
	"quantum-stock/internal/stock"
)

//go:embed templates/*.html
var templateFS embed.FS

// CategoryOption is one entry of the category select
type CategoryOption struct {
	Value    string
	Label    string
	Selected bool
}

// StockPage is the data of the stock screen
type StockPage struct {
	stock.View
	Username     string
	IsAdmin      bool
	Categories   []CategoryOption
	FilterAction string // keeps the current address so the form merges into it
}

// HomePage is the data of the landing page
type HomePage struct {
	Username string
	Message  string
}

// Renderer executes the embedded templates
type Renderer struct {
	templates *template.Template
}

// New parses the embedded templates
func New() (*Renderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"pageURL": pageURL,
		"price":   func(f float64) string { return fmt.Sprintf("$%.2f", f) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

// NewStockPage prepares the stock screen for v
func NewStockPage(v stock.View, username string, isAdmin bool) StockPage {
	options := []CategoryOption{{
		Value:    string(domain.CategoryAll),
		Label:    domain.CategoryLabel(string(domain.CategoryAll)),
		Selected: v.State.Category == string(domain.CategoryAll),
	}}
	for _, c := range domain.Categories {
		options = append(options, CategoryOption{
			Value:    string(c),
			Label:    domain.CategoryLabel(string(c)),
			Selected: v.State.Category == string(c),
		})
	}
	action := url.URL{Path: "/stock/filters", RawQuery: v.State.Values().Encode()}
	return StockPage{
		View:         v,
		Username:     username,
		IsAdmin:      isAdmin,
		Categories:   options,
		FilterAction: action.String(),
	}
}

// Stock renders the stock screen
func (r *Renderer) Stock(w io.Writer, page StockPage) error {
	return r.render(w, "stock.html", page)
}

// Home renders the landing page
func (r *Renderer) Home(w io.Writer, page HomePage) error {
	return r.render(w, "home.html", page)
}

// render buffers the output so a failing template writes nothing
func (r *Renderer) render(w io.Writer, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// pageURL is the stock address with page n and the other filters kept
func pageURL(state querystate.State, n int) string {
	values := state.Values()
	values.Set(querystate.KeyPage, strconv.Itoa(n))
	u := url.URL{Path: "/stock", RawQuery: values.Encode()}
	return u.String()
}
