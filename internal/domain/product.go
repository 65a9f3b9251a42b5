package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Product represents an inventory item managed by the remote API
type Product struct {
	ID          ProductID `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	MinQuantity int       `json:"minQuantity"`
	CreatedAt   string    `json:"createdAt,omitempty"`
	UpdatedAt   string    `json:"updatedAt,omitempty"`
}

// ProductID is the opaque server-assigned identifier. The API emits numbers,
// older deployments emit strings; both decode to the same value.
type ProductID string

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid product id %s: %w", data, err)
	}
	*id = ProductID(n.String())
	return nil
}

func (id ProductID) String() string {
	return string(id)
}

// Status is the derived stock level of a product
type Status string

const (
	StatusOutOfStock Status = "out_of_stock"
	StatusLowStock   Status = "low_stock"
	StatusNormal     Status = "normal"
)

// StockStatus classifies a product by comparing its quantity to its threshold.
// Zero quantity is always out of stock, whatever the threshold.
func StockStatus(p Product) Status {
	switch {
	case p.Quantity <= 0:
		return StatusOutOfStock
	case p.Quantity <= p.MinQuantity:
		return StatusLowStock
	default:
		return StatusNormal
	}
}

// Label returns the Spanish badge text for a status
func (s Status) Label() string {
	switch s {
	case StatusOutOfStock:
		return "Sin stock"
	case StatusLowStock:
		return "Stock bajo"
	default:
		return "Normal"
	}
}

// PageResult is one normalized page of the product list
type PageResult struct {
	Products      []Product `json:"products"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	CurrentPage   int       `json:"currentPage"`
}

// EmptyPage is returned when a response cannot be interpreted
func EmptyPage() *PageResult {
	return &PageResult{Products: []Product{}}
}

// ProductInput is the payload sent to create and update endpoints
type ProductInput struct {
	Name        string  `json:"name" validate:"required,notblank,max=100"`
	Description string  `json:"description" validate:"required,notblank,max=250"`
	Category    string  `json:"category" validate:"required,category"`
	Price       float64 `json:"price" validate:"gt=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	MinQuantity int     `json:"minQuantity" validate:"gte=0"`
}

// Normalized returns a copy with the category in the server enumeration format
func (in ProductInput) Normalized() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = NormalizeCategory(in.Category)
	return in
}

// InputFromProduct extracts the editable fields of a product
func InputFromProduct(p Product) ProductInput {
	return ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Quantity:    p.Quantity,
		MinQuantity: p.MinQuantity,
	}
}
