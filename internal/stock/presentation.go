package stock

import (
	"fmt"
	"math"
	"strings"

	"quantum-stock/internal/domain"
)

// MaxVisiblePages is the width of the pagination window
const MaxVisiblePages = 5

// ViewMode selects how the page is rendered
type ViewMode string

const (
	ViewTable ViewMode = "table"
	ViewCards ViewMode = "cards"
)

// ParseViewMode falls back to the table view
func ParseViewMode(s string) ViewMode {
	if ViewMode(strings.ToLower(strings.TrimSpace(s))) == ViewCards {
		return ViewCards
	}
	return ViewTable
}

// VisiblePages returns the page numbers shown around current. The window
// starts two pages before current and is cut at the last page.
func VisiblePages(current, total int) []int {
	if total <= 1 {
		return nil
	}
	start, end := 1, total
	if total > MaxVisiblePages {
		start = max(1, current-2)
		end = min(total, start+MaxVisiblePages-1)
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// Range is the slice of the result set shown on the current page
type Range struct {
	Start int
	End   int
	Total int
}

// RangeFor computes the range of 1-based page current
func RangeFor(current, size, total int) Range {
	if total <= 0 || size <= 0 {
		return Range{}
	}
	if current < 1 {
		current = 1
	}
	return Range{
		Start: (current-1)*size + 1,
		End:   min(current*size, total),
		Total: total,
	}
}

// Label renders the range as shown under the list
func (r Range) Label() string {
	return fmt.Sprintf("Mostrando %d a %d de %d productos", r.Start, r.End, r.Total)
}

// Stats are the summary cards of the current page
type Stats struct {
	Total      int     `json:"total"`
	Normal     int     `json:"normal"`
	LowStock   int     `json:"lowStock"`
	OutOfStock int     `json:"outOfStock"`
	Units      int     `json:"units"`
	Value      float64 `json:"value"`
}

// ComputeStats summarizes products
func ComputeStats(products []domain.Product) Stats {
	var s Stats
	for _, p := range products {
		s.Total++
		s.Units += p.Quantity
		s.Value += p.Price * float64(p.Quantity)
		switch domain.StockStatus(p) {
		case domain.StatusOutOfStock:
			s.OutOfStock++
		case domain.StatusLowStock:
			s.LowStock++
		default:
			s.Normal++
		}
	}
	s.Value = math.Round(s.Value*100) / 100
	return s
}

// NormalPercent is the rounded share of products with normal stock
func (s Stats) NormalPercent() int {
	return percent(s.Normal, s.Total)
}

// OutOfStockPercent is the rounded share of products without stock
func (s Stats) OutOfStockPercent() int {
	return percent(s.OutOfStock, s.Total)
}

// ValueLabel formats the inventory value
func (s Stats) ValueLabel() string {
	return fmt.Sprintf("$%.2f", s.Value)
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(total)))
}

// Row is one product ready to render
type Row struct {
	domain.Product
	Status        domain.Status `json:"status"`
	StatusLabel   string        `json:"statusLabel"`
	CategoryLabel string        `json:"categoryLabel"`
}

// Rows decorates products with their stock status and labels
func Rows(products []domain.Product) []Row {
	rows := make([]Row, 0, len(products))
	for _, p := range products {
		status := domain.StockStatus(p)
		rows = append(rows, Row{
			Product:       p,
			Status:        status,
			StatusLabel:   status.Label(),
			CategoryLabel: domain.CategoryLabel(p.Category),
		})
	}
	return rows
}
