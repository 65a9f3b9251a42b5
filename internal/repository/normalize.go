package repository

import (
	"bytes"
	"encoding/json"

	"quantum-stock/internal/domain"
)

type listShape int

const (
	shapeUnknown listShape = iota
	shapeBare
	shapeEnvelope
)

// listResponse is the decoded list body: either a bare array of products or
// a paginated envelope. Nothing past Normalize branches on the shape.
type listResponse struct {
	shape    listShape
	products []domain.Product
	envelope pageEnvelope
}

type pageEnvelope struct {
	Content       []domain.Product `json:"content"`
	Page          json.RawMessage  `json:"page"`
	Number        *int             `json:"number"`
	Size          int              `json:"size"`
	TotalElements int              `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
}

// pageMetadata is the nested "page" object newer Spring versions emit
type pageMetadata struct {
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

func decodeListResponse(body []byte) listResponse {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return listResponse{}
	}

	switch body[0] {
	case '[':
		var products []domain.Product
		if err := json.Unmarshal(body, &products); err != nil {
			return listResponse{}
		}
		return listResponse{shape: shapeBare, products: products}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return listResponse{}
		}
		if _, ok := fields["content"]; !ok {
			return listResponse{}
		}
		var env pageEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return listResponse{}
		}
		return listResponse{shape: shapeEnvelope, envelope: env}
	default:
		return listResponse{}
	}
}

// Normalize turns any list response body into a PageResult. Unrecognized
// bodies yield an empty page rather than an error.
func Normalize(body []byte) *domain.PageResult {
	resp := decodeListResponse(body)

	switch resp.shape {
	case shapeBare:
		products := resp.products
		if products == nil {
			products = []domain.Product{}
		}
		return &domain.PageResult{
			Products:      products,
			TotalElements: len(products),
			TotalPages:    1,
			CurrentPage:   0,
		}
	case shapeEnvelope:
		env := resp.envelope
		result := &domain.PageResult{
			Products:      env.Content,
			TotalElements: env.TotalElements,
			TotalPages:    env.TotalPages,
		}
		if result.Products == nil {
			result.Products = []domain.Product{}
		}
		if env.Number != nil {
			result.CurrentPage = *env.Number
		}
		applyPageField(result, env.Page)
		return result
	default:
		return domain.EmptyPage()
	}
}

// applyPageField reads "page" as either a page index or a metadata object
func applyPageField(result *domain.PageResult, raw json.RawMessage) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		result.CurrentPage = n
		return
	}

	var meta pageMetadata
	if err := json.Unmarshal(raw, &meta); err == nil {
		result.CurrentPage = meta.Number
		if result.TotalElements == 0 {
			result.TotalElements = meta.TotalElements
		}
		if result.TotalPages == 0 {
			result.TotalPages = meta.TotalPages
		}
	}
}
