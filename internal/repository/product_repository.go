package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quantum-stock/internal/domain"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBodySize bounds how much of a response body is read
const maxBodySize = 4 << 20

// ListParams are the list endpoint filters; Page is 0-based
type ListParams struct {
	Name     string
	Category string
	MinPrice float64
	MaxPrice float64
	Page     int
	Size     int
	Sort     string
}

// Values serializes the params as the API query string
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Name != "" {
		v.Set("name", p.Name)
	}
	if p.Category != "" && !strings.EqualFold(p.Category, "all") {
		v.Set("category", domain.NormalizeCategory(p.Category))
	}
	if p.MinPrice > 0 {
		v.Set("minPrice", strconv.FormatFloat(p.MinPrice, 'f', -1, 64))
	}
	if p.MaxPrice > 0 {
		v.Set("maxPrice", strconv.FormatFloat(p.MaxPrice, 'f', -1, 64))
	}
	if p.Page < 0 {
		p.Page = 0
	}
	v.Set("page", strconv.Itoa(p.Page))
	if p.Size > 0 {
		v.Set("size", strconv.Itoa(p.Size))
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	return v
}

// ProductRepository defines the REST operations on products
type ProductRepository interface {
	List(ctx context.Context, token string, params ListParams) (*domain.PageResult, error)
	Create(ctx context.Context, token string, input domain.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, token string, id domain.ProductID, input domain.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, token string, id domain.ProductID) error
}

type productRepository struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewProductRepository creates a ProductRepository for the API at baseURL
func NewProductRepository(baseURL string, timeout time.Duration, logger *zap.Logger) ProductRepository {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewProductRepositoryWithClient(baseURL, &http.Client{Timeout: timeout}, logger)
}

// NewProductRepositoryWithClient creates a ProductRepository using client
func NewProductRepositoryWithClient(baseURL string, client *http.Client, logger *zap.Logger) ProductRepository {
	return &productRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// updateBody is the update payload; the API expects the id in the body too
type updateBody struct {
	ID domain.ProductID `json:"id"`
	domain.ProductInput
}

// List fetches one page of products and normalizes the response shape
func (r *productRepository) List(ctx context.Context, token string, params ListParams) (*domain.PageResult, error) {
	endpoint := r.baseURL + "/products/all?" + params.Values().Encode()

	body, err := r.do(ctx, OpList, http.MethodGet, endpoint, token, nil)
	if err != nil {
		return nil, err
	}

	return Normalize(body), nil
}

// Create posts a new product
func (r *productRepository) Create(ctx context.Context, token string, input domain.ProductInput) (*domain.Product, error) {
	body, err := r.do(ctx, OpCreate, http.MethodPost, r.baseURL+"/products/create", token, input.Normalized())
	if err != nil {
		return nil, err
	}

	product := &domain.Product{}
	if err := json.Unmarshal(body, product); err != nil {
		return nil, fmt.Errorf("failed to decode created product: %w", err)
	}

	return product, nil
}

// Update replaces the editable fields of product id
func (r *productRepository) Update(ctx context.Context, token string, id domain.ProductID, input domain.ProductInput) (*domain.Product, error) {
	endpoint := r.baseURL + "/products/update/" + url.PathEscape(id.String())
	payload := updateBody{ID: id, ProductInput: input.Normalized()}

	body, err := r.do(ctx, OpUpdate, http.MethodPut, endpoint, token, payload)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{}
	if len(bytes.TrimSpace(body)) == 0 {
		// Some deployments answer 204; echo back what was sent
		*product = productFromInput(id, payload.ProductInput)
		return product, nil
	}
	if err := json.Unmarshal(body, product); err != nil {
		return nil, fmt.Errorf("failed to decode updated product: %w", err)
	}

	return product, nil
}

// Delete removes product id
func (r *productRepository) Delete(ctx context.Context, token string, id domain.ProductID) error {
	endpoint := r.baseURL + "/products/delete/" + url.PathEscape(id.String())

	_, err := r.do(ctx, OpDelete, http.MethodDelete, endpoint, token, nil)
	return err
}

func (r *productRepository) do(ctx context.Context, op Operation, method, endpoint, token string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := middleware.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("Products API call failed",
			zap.String("op", string(op)),
			zap.String("method", method),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	r.logger.Debug("Products API call completed",
		zap.String("op", string(op)),
		zap.String("method", method),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(op, resp.StatusCode, body)
	}

	return body, nil
}

func productFromInput(id domain.ProductID, in domain.ProductInput) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Quantity:    in.Quantity,
		MinQuantity: in.MinQuantity,
	}
}
