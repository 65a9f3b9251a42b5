package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"quantum-stock/internal/auth"
	"quantum-stock/internal/domain"
	"quantum-stock/internal/fetcher"
	"quantum-stock/internal/middleware"
	"quantum-stock/internal/mutation"
	"quantum-stock/internal/repository"
	"quantum-stock/internal/view"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "test-secret"
	testClient = "quantum-stock-frontend"
)

// fakeAPI is an in-memory products REST API
type fakeAPI struct {
	mu         sync.Mutex
	products   map[string]domain.Product
	nextID     int
	listCalls  int
	writeCalls int
	failStatus int // when set, mutations answer with this status
}

func newFakeAPI(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	api := &fakeAPI{products: make(map[string]domain.Product), nextID: 1}

	r := chi.NewRouter()
	r.Get("/products/all", api.list)
	r.Post("/products/create", api.create)
	r.Put("/products/update/{id}", api.update)
	r.Delete("/products/delete/{id}", api.delete)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv.URL
}

func (a *fakeAPI) seed(products ...domain.ProductInput) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, in := range products {
		a.insertLocked(in)
	}
}

func (a *fakeAPI) insertLocked(in domain.ProductInput) domain.Product {
	id := strconv.Itoa(a.nextID)
	a.nextID++
	p := domain.Product{
		ID:          domain.ProductID(id),
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Quantity:    in.Quantity,
		MinQuantity: in.MinQuantity,
	}
	a.products[id] = p
	return p
}

func (a *fakeAPI) counts() (lists, writes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listCalls, a.writeCalls
}

func (a *fakeAPI) list(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listCalls++

	name := strings.ToLower(r.URL.Query().Get("name"))
	content := make([]domain.Product, 0, len(a.products))
	for _, p := range a.products {
		if name == "" || strings.Contains(strings.ToLower(p.Name), name) {
			content = append(content, p)
		}
	}
	sort.Slice(content, func(i, j int) bool { return content[i].ID < content[j].ID })

	json.NewEncoder(w).Encode(map[string]interface{}{
		"content":       content,
		"totalElements": len(content),
		"totalPages":    1,
		"page":          0,
	})
}

func (a *fakeAPI) failLocked(w http.ResponseWriter) bool {
	a.writeCalls++
	if a.failStatus == 0 {
		return false
	}
	w.WriteHeader(a.failStatus)
	fmt.Fprintf(w, `{"status": %d, "message": "Fallo simulado"}`, a.failStatus)
	return true
}

func (a *fakeAPI) create(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failLocked(w) {
		return
	}

	var in domain.ProductInput
	json.NewDecoder(r.Body).Decode(&in)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(a.insertLocked(in))
}

func (a *fakeAPI) update(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failLocked(w) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := a.products[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Product not found"}`))
		return
	}
	var in domain.ProductInput
	json.NewDecoder(r.Body).Decode(&in)
	p := a.products[id]
	p.Name, p.Description, p.Category = in.Name, in.Description, in.Category
	p.Price, p.Quantity, p.MinQuantity = in.Price, in.Quantity, in.MinQuantity
	a.products[id] = p
	json.NewEncoder(w).Encode(p)
}

func (a *fakeAPI) delete(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failLocked(w) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := a.products[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Product not found"}`))
		return
	}
	delete(a.products, id)
	w.WriteHeader(http.StatusNoContent)
}

func testToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claimRoles := make([]interface{}, 0, len(roles))
	for _, r := range roles {
		claimRoles = append(claimRoles, r)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                subject,
		"preferred_username": subject,
		"exp":                time.Now().Add(time.Hour).Unix(),
		"resource_access": map[string]interface{}{
			testClient: map[string]interface{}{"roles": claimRoles},
		},
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newTestRouter(t *testing.T) (*fakeAPI, http.Handler) {
	t.Helper()
	api, baseURL := newFakeAPI(t)
	logger := zap.NewNop()

	repo := repository.NewProductRepository(baseURL, 5*time.Second, logger)
	f := fetcher.New(repo, fetcher.Options{Logger: logger})
	renderer, err := view.New()
	require.NoError(t, err)

	handler := NewStockHandler(repo, f, renderer, StockHandlerOptions{
		PageSize:        10,
		SearchMinLength: 2,
	}, logger)

	parser := auth.NewParser(testClient, testSecret)
	r := chi.NewRouter()
	handler.RegisterRoutes(r, Middlewares{
		Session:  middleware.SessionMiddleware(parser, logger),
		Auth:     middleware.AuthMiddleware(parser, logger),
		Admin:    middleware.RequireAdmin(logger),
		JSONBody: middleware.JSONBodyMiddleware(logger),
	})
	return api, r
}

func validProduct(name string) domain.ProductInput {
	return domain.ProductInput{
		Name:        name,
		Description: "Producto de prueba",
		Category:    "ELECTRONICS",
		Price:       10,
		Quantity:    4,
		MinQuantity: 2,
	}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func apiRequest(t *testing.T, method, target, token string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Message
}

func TestStockPage_RedirectsAnonymousToLogin(t *testing.T) {
	_, router := newTestRouter(t)

	w := serve(router, httptest.NewRequest("GET", "/stock?page=2", nil))

	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/login", location.Path)
	assert.Equal(t, "/stock?page=2", location.Query().Get("return"))
}

func TestStockPage_RedirectsNonAdminHome(t *testing.T) {
	api, router := newTestRouter(t)
	token := testToken(t, "viewer", "user")

	req := httptest.NewRequest("GET", "/stock", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	w := serve(router, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/?reason=forbidden", w.Header().Get("Location"))
	lists, _ := api.counts()
	assert.Zero(t, lists, "A denied user must not trigger a fetch")

	home := httptest.NewRequest("GET", "/?reason=forbidden", nil)
	home.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	w = serve(router, home)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msgStockDenied)
	assert.Contains(t, w.Body.String(), "viewer")
}

func TestStockPage_RendersProducts(t *testing.T) {
	api, router := newTestRouter(t)
	api.seed(validProduct("Laptop"), validProduct("Monitor"))

	req := httptest.NewRequest("GET", "/stock", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: testToken(t, "admin", auth.RoleAdmin)})
	w := serve(router, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "Laptop")
	assert.Contains(t, body, "Monitor")
	assert.Contains(t, body, "Mostrando 1 a 2 de 2 productos")
}

func TestApplyFilters_RedirectsToMergedAddress(t *testing.T) {
	_, router := newTestRouter(t)

	tests := []struct {
		name    string
		address string
		form    url.Values
		want    string
	}{
		{
			name:    "new search resets page",
			address: "page=3",
			form:    url.Values{"query": {"lap"}, "category": {"all"}},
			want:    "/stock?page=1&query=lap",
		},
		{
			name:    "category is normalized",
			address: "query=lap",
			form:    url.Values{"query": {"lap"}, "category": {"pet supplies"}},
			want:    "/stock?category=PET_SUPPLIES&page=1&query=lap",
		},
		{
			name:    "unchanged form keeps page",
			address: "page=3&query=lap",
			form:    url.Values{"query": {"lap"}, "category": {"all"}},
			want:    "/stock?page=3&query=lap",
		},
		{
			name:    "short search clears the filter",
			address: "query=lap",
			form:    url.Values{"query": {"l"}},
			want:    "/stock?page=1",
		},
		{
			name:    "invalid price is absent",
			address: "",
			form:    url.Values{"minPrice": {"abc"}, "maxPrice": {"25.5"}},
			want:    "/stock?maxPrice=25.5&page=1",
		},
		{
			name:    "clear removes every filter",
			address: "category=BOOKS&minPrice=5&page=2&query=mesa&view=cards",
			form:    url.Values{"query": {"mesa"}, "clear": {"1"}},
			want:    "/stock?page=1&view=cards",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/stock/filters?"+tt.address, strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := serve(router, req)

			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Location"))
		})
	}
}

func TestListProducts_ReturnsPageWithPresentation(t *testing.T) {
	api, router := newTestRouter(t)
	low := validProduct("Teclado")
	low.Quantity = 1
	out := validProduct("Raton")
	out.Quantity = 0
	api.seed(validProduct("Laptop"), low, out)

	w := serve(router, apiRequest(t, "GET", "/api/stock/products", testToken(t, "admin", auth.RoleAdmin), nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp ProductListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Products, 3)
	assert.Equal(t, 3, resp.TotalElements)
	assert.Equal(t, 3, resp.Stats.Total)
	assert.Equal(t, 1, resp.Stats.LowStock)
	assert.Equal(t, 1, resp.Stats.OutOfStock)
	assert.Equal(t, "Mostrando 1 a 3 de 3 productos", resp.Range.Label)
	assert.Equal(t, "Stock bajo", resp.Products[1].StatusLabel)
	assert.Empty(t, resp.Pages)
}

func TestListProducts_RequiresAdmin(t *testing.T) {
	_, router := newTestRouter(t)

	w := serve(router, apiRequest(t, "GET", "/api/stock/products", "", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, apiRequest(t, "GET", "/api/stock/products", testToken(t, "viewer", "user"), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateProduct_InvalidatesCachedPages(t *testing.T) {
	api, router := newTestRouter(t)
	api.seed(validProduct("Laptop"), validProduct("Monitor"))
	token := testToken(t, "admin", auth.RoleAdmin)

	serve(router, apiRequest(t, "GET", "/api/stock/products", token, nil))
	serve(router, apiRequest(t, "GET", "/api/stock/products", token, nil))
	lists, _ := api.counts()
	require.Equal(t, 1, lists, "A repeated key is served from cache")

	w := serve(router, apiRequest(t, "POST", "/api/stock/products", token, validProduct("Impresora")))
	require.Equal(t, http.StatusCreated, w.Code)
	var created domain.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, domain.ProductID("3"), created.ID)

	w = serve(router, apiRequest(t, "GET", "/api/stock/products", token, nil))
	var resp ProductListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Products, 3)
	lists, _ = api.counts()
	assert.Equal(t, 2, lists)
}

func TestCreateProduct_ValidationErrorsStayLocal(t *testing.T) {
	api, router := newTestRouter(t)
	input := validProduct("Laptop")
	input.Price = 0

	w := serve(router, apiRequest(t, "POST", "/api/stock/products", testToken(t, "admin", auth.RoleAdmin), input))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Error struct {
			Message string `json:"message"`
			Details struct {
				ValidationErrors []struct {
					Field   string `json:"field"`
					Message string `json:"message"`
				} `json:"validation_errors"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, mutation.MsgInvalidForm, resp.Error.Message)
	require.Len(t, resp.Error.Details.ValidationErrors, 1)
	assert.Equal(t, "price", resp.Error.Details.ValidationErrors[0].Field)
	assert.Equal(t, "El precio debe ser mayor a 0", resp.Error.Details.ValidationErrors[0].Message)

	_, writes := api.counts()
	assert.Zero(t, writes)
}

func TestCreateProduct_RejectsMalformedBodies(t *testing.T) {
	_, router := newTestRouter(t)
	token := testToken(t, "admin", auth.RoleAdmin)

	req := httptest.NewRequest("POST", "/api/stock/products", strings.NewReader(`name=x`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, serve(router, req).Code)

	req = httptest.NewRequest("POST", "/api/stock/products", strings.NewReader(`{"name":`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgInvalidBody, errorMessage(t, w))
}

func TestUpdateProduct_NotFound(t *testing.T) {
	_, router := newTestRouter(t)

	w := serve(router, apiRequest(t, "PUT", "/api/stock/products/42", testToken(t, "admin", auth.RoleAdmin), validProduct("Laptop")))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, mutation.MsgNotFound, errorMessage(t, w))
}

func TestUpdateProduct_ReturnsUpdatedProduct(t *testing.T) {
	api, router := newTestRouter(t)
	api.seed(validProduct("Laptop"))
	input := validProduct("Laptop Pro")
	input.Category = "home"

	w := serve(router, apiRequest(t, "PUT", "/api/stock/products/1", testToken(t, "admin", auth.RoleAdmin), input))

	require.Equal(t, http.StatusOK, w.Code)
	var updated domain.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Laptop Pro", updated.Name)
	assert.Equal(t, "HOME", updated.Category)
}

func TestDeleteProduct(t *testing.T) {
	api, router := newTestRouter(t)
	api.seed(validProduct("Laptop"))
	token := testToken(t, "admin", auth.RoleAdmin)

	w := serve(router, apiRequest(t, "DELETE", "/api/stock/products/1", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"1"}`, w.Body.String())

	w = serve(router, apiRequest(t, "DELETE", "/api/stock/products/1", token, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, mutation.MsgDeleteNotFound, errorMessage(t, w))
}

func TestProperty_MutationFailuresMapToStatus(t *testing.T) {
	properties := gopter.NewProperties(nil)

	expected := map[int]int{
		http.StatusUnauthorized:        http.StatusUnauthorized,
		http.StatusForbidden:           http.StatusForbidden,
		http.StatusNotFound:            http.StatusNotFound,
		http.StatusConflict:            http.StatusConflict,
		http.StatusInternalServerError: http.StatusBadGateway,
		http.StatusServiceUnavailable:  http.StatusBadGateway,
	}

	properties.Property("upstream failures map to a stable BFF status", prop.ForAll(
		func(upstream int, method string) bool {
			api, router := newTestRouter(t)
			api.seed(validProduct("Laptop"))
			api.failStatus = upstream
			token := testToken(t, "admin", auth.RoleAdmin)

			var body interface{}
			target := "/api/stock/products/1"
			switch method {
			case "POST":
				target = "/api/stock/products"
				body = validProduct("Monitor")
			case "PUT":
				body = validProduct("Monitor")
			}

			w := serve(router, apiRequest(t, method, target, token, body))
			return w.Code == expected[upstream]
		},
		gen.OneConstOf(
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		),
		gen.OneConstOf("POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
