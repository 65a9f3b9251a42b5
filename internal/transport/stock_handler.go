package transport

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"quantum-stock/internal/domain"
	"quantum-stock/internal/fetcher"
	"quantum-stock/internal/middleware"
	"quantum-stock/internal/mutation"
	"quantum-stock/internal/querystate"
	"quantum-stock/internal/repository"
	"quantum-stock/internal/stock"
	"quantum-stock/internal/view"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgInvalidBody  = "Cuerpo de la petición inválido"
	msgInvalidForm  = "Formulario de filtros inválido"
	msgRenderFailed = "No se pudo mostrar la página"
	msgStockDenied  = "No tienes permisos para acceder al inventario."
	reasonForbidden = "forbidden"
	stockPath       = "/stock"
	viewModeParam   = "view"
	homeReasonParam = "reason"
)

// StockHandlerOptions configures the stock pages and endpoints
type StockHandlerOptions struct {
	PageSize        int
	SearchMinLength int
}

// Middlewares are the route guards built by the server
type Middlewares struct {
	Session   func(http.Handler) http.Handler // optional session for pages
	Auth      func(http.Handler) http.Handler // required session for the API
	Admin     func(http.Handler) http.Handler
	JSONBody  func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler // nil disables rate limiting
}

// ProductListResponse is the JSON list of one page
type ProductListResponse struct {
	Products      []stock.Row   `json:"products"`
	TotalElements int           `json:"totalElements"`
	TotalPages    int           `json:"totalPages"`
	CurrentPage   int           `json:"currentPage"`
	Stats         stock.Stats   `json:"stats"`
	Pages         []int         `json:"pages"`
	Range         RangeResponse `json:"range"`
}

// RangeResponse is the "showing X to Y of Z" window
type RangeResponse struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Total int    `json:"total"`
	Label string `json:"label"`
}

// DeleteResponse acknowledges a deletion
type DeleteResponse struct {
	ID domain.ProductID `json:"id"`
}

// StockHandler serves the stock screen and its JSON endpoints
type StockHandler struct {
	repo     repository.ProductRepository
	fetcher  *fetcher.Fetcher
	renderer *view.Renderer
	opts     StockHandlerOptions
	logger   *zap.Logger
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(repo repository.ProductRepository, f *fetcher.Fetcher, renderer *view.Renderer, opts StockHandlerOptions, logger *zap.Logger) *StockHandler {
	if opts.PageSize <= 0 {
		opts.PageSize = querystate.DefaultPageSize
	}
	return &StockHandler{
		repo:     repo,
		fetcher:  f,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
	}
}

// RegisterRoutes registers the pages and the stock API
func (h *StockHandler) RegisterRoutes(r chi.Router, mw Middlewares) {
	// Pages
	r.Group(func(r chi.Router) {
		r.Use(mw.Session)
		r.Get("/", h.Home)
		r.Get(stockPath, h.StockPage)
		r.Post(stockPath+"/filters", h.ApplyFilters)
	})

	r.Route("/api/stock", func(r chi.Router) {
		r.Use(mw.Auth)
		r.Use(mw.Admin)
		r.Get("/products", h.ListProducts)

		r.Group(func(r chi.Router) {
			if mw.RateLimit != nil {
				r.Use(mw.RateLimit)
			}
			r.Use(mw.JSONBody)
			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)
		})
	})
}

// Home renders the landing page
func (h *StockHandler) Home(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	page := view.HomePage{Username: session.Username}
	if r.URL.Query().Get(homeReasonParam) == reasonForbidden {
		page.Message = msgStockDenied
	}

	h.renderHTML(w, func(w http.ResponseWriter) error {
		return h.renderer.Home(w, page)
	})
}

// StockPage renders the stock screen for the filters in the address
func (h *StockHandler) StockPage(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	switch stock.CheckAccess(session) {
	case stock.AccessLogin:
		h.logger.Debug("Redirecting anonymous user to login", zap.String("return_to", r.URL.RequestURI()))
		http.Redirect(w, r, LoginPath(r.URL.RequestURI()), http.StatusFound)
		return
	case stock.AccessDenied:
		h.logger.Info("Stock screen denied", zap.String("subject", session.Subject))
		http.Redirect(w, r, "/?"+homeReasonParam+"="+reasonForbidden, http.StatusFound)
		return
	}

	state := querystate.FromValues(r.URL.Query(), h.opts.PageSize)
	page, err := h.fetchPage(r, state, session.Token)

	v := stock.BuildView(state, r.URL.RequestURI(), page, err)
	v.Access = stock.AccessGranted
	v.ViewMode = stock.ParseViewMode(r.URL.Query().Get(viewModeParam))

	h.renderHTML(w, func(w http.ResponseWriter) error {
		return h.renderer.Stock(w, view.NewStockPage(v, session.Username, session.IsAdmin()))
	})
}

// ApplyFilters merges the posted filter form into the current address and
// redirects to it. Only changed filters are written, so an unchanged form
// keeps the page.
func (h *StockHandler) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Debug("Invalid filter form", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, msgInvalidForm)
		return
	}

	address, err := querystate.NewAddress(stockPath + "?" + r.URL.RawQuery)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, msgInvalidForm)
		return
	}

	if r.PostForm.Get("clear") != "" {
		address.Replace(querystate.Update{
			querystate.KeyQuery:    "",
			querystate.KeyCategory: "",
			querystate.KeyMinPrice: "",
			querystate.KeyMaxPrice: "",
		})
	} else if update := h.filterUpdate(address.Params(), r); len(update) > 0 {
		address.Replace(update)
	}

	http.Redirect(w, r, address.String(), http.StatusSeeOther)
}

// filterUpdate returns the filters of the form that differ from current
func (h *StockHandler) filterUpdate(current querystate.Params, r *http.Request) querystate.Update {
	query := strings.TrimSpace(r.PostForm.Get(querystate.KeyQuery))
	if utf8.RuneCountInString(query) < h.opts.SearchMinLength {
		query = ""
	}

	category := strings.TrimSpace(r.PostForm.Get(querystate.KeyCategory))
	if category == "" || strings.EqualFold(category, string(domain.CategoryAll)) {
		category = ""
	} else {
		category = domain.NormalizeCategory(category)
	}

	wanted := map[string]string{
		querystate.KeyQuery:    query,
		querystate.KeyCategory: category,
		querystate.KeyMinPrice: querystate.FormatPrice(querystate.ParsePrice(r.PostForm.Get(querystate.KeyMinPrice))),
		querystate.KeyMaxPrice: querystate.FormatPrice(querystate.ParsePrice(r.PostForm.Get(querystate.KeyMaxPrice))),
	}

	state := current.State(h.opts.PageSize)
	have := map[string]string{
		querystate.KeyQuery:    state.Query,
		querystate.KeyCategory: "",
		querystate.KeyMinPrice: querystate.FormatPrice(state.MinPrice),
		querystate.KeyMaxPrice: querystate.FormatPrice(state.MaxPrice),
	}
	if state.Category != string(domain.CategoryAll) {
		have[querystate.KeyCategory] = state.Category
	}

	update := querystate.Update{}
	for k, v := range wanted {
		if have[k] != v {
			update[k] = v
		}
	}
	return update
}

// ListProducts returns the page for the filters in the query string
func (h *StockHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())

	state := querystate.FromValues(r.URL.Query(), h.opts.PageSize)
	page, err := h.fetchPage(r, state, session.Token)
	if err != nil {
		middleware.RespondWithError(w, listErrorStatus(err), stock.ListErrorMessage(err))
		return
	}

	v := stock.BuildView(state, r.URL.RequestURI(), page, nil)
	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products:      v.Rows,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		CurrentPage:   page.CurrentPage,
		Stats:         v.Stats,
		Pages:         v.Pages,
		Range: RangeResponse{
			Start: v.Range.Start,
			End:   v.Range.End,
			Total: v.Range.Total,
			Label: v.Range.Label(),
		},
	})
}

// CreateProduct handles product creation
func (h *StockHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductInput
	if err := middleware.Decode(r, &input); err != nil {
		h.logger.Debug("Create request body rejected", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	session, _ := middleware.GetSession(r.Context())
	var out outcome
	mutation.NewCreator(h.repo, session, out.callbacks(), h.logger).Create(r.Context(), input)
	h.respondMutation(w, out, http.StatusCreated)
}

// UpdateProduct handles product updates
func (h *StockHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductInput
	if err := middleware.Decode(r, &input); err != nil {
		h.logger.Debug("Update request body rejected", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	session, _ := middleware.GetSession(r.Context())
	id := domain.ProductID(strings.TrimSpace(chi.URLParam(r, "id")))
	var out outcome
	mutation.NewUpdater(h.repo, session, out.callbacks(), h.logger).Update(r.Context(), id, input)
	h.respondMutation(w, out, http.StatusOK)
}

// DeleteProduct handles product deletion
func (h *StockHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r.Context())
	id := domain.ProductID(strings.TrimSpace(chi.URLParam(r, "id")))
	var out outcome
	mutation.NewDeleter(h.repo, session, out.callbacks(), h.logger).Delete(r.Context(), id)
	h.respondMutation(w, out, http.StatusOK)
}

// outcome captures the callbacks of one dispatch
type outcome struct {
	result mutation.Result
	err    error
}

func (o *outcome) callbacks() mutation.Callbacks {
	return mutation.Callbacks{
		OnSuccess: func(res mutation.Result) { o.result = res },
		OnError:   func(err error) { o.err = err },
	}
}

func (h *StockHandler) respondMutation(w http.ResponseWriter, out outcome, successStatus int) {
	if out.err != nil {
		respondMutationError(w, out.err)
		return
	}

	// Every cached page may now be stale
	h.fetcher.InvalidateAll()

	if out.result.Product != nil {
		middleware.RespondWithJSON(w, successStatus, out.result.Product)
		return
	}
	middleware.RespondWithJSON(w, successStatus, DeleteResponse{ID: out.result.ID})
}

func respondMutationError(w http.ResponseWriter, err error) {
	var merr *mutation.Error
	if !errors.As(err, &merr) {
		middleware.RespondWithError(w, http.StatusInternalServerError, mutation.MsgServerError)
		return
	}

	switch merr.Kind {
	case mutation.KindValidation:
		middleware.RespondWithValidationErrors(w, merr.Message, middleware.FormatValidationErrors(merr.Err))
	case mutation.KindAuth:
		middleware.RespondWithError(w, http.StatusUnauthorized, merr.Message)
	case mutation.KindPermission:
		middleware.RespondWithError(w, http.StatusForbidden, merr.Message)
	case mutation.KindNotFound:
		middleware.RespondWithError(w, http.StatusNotFound, merr.Message)
	case mutation.KindServer:
		middleware.RespondWithError(w, http.StatusBadGateway, merr.Message)
	case mutation.KindNetwork:
		middleware.RespondWithError(w, http.StatusServiceUnavailable, merr.Message)
	default:
		status := merr.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadRequest
		}
		middleware.RespondWithError(w, status, merr.Message)
	}
}

func (h *StockHandler) fetchPage(r *http.Request, state querystate.State, token string) (*domain.PageResult, error) {
	key := fetcher.KeyFor(state, token)
	if key == nil {
		return nil, repository.ErrUnauthorized
	}
	return h.fetcher.Fetch(r.Context(), *key)
}

func listErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// renderHTML writes a page, or a JSON error when rendering fails
func (h *StockHandler) renderHTML(w http.ResponseWriter, render func(http.ResponseWriter) error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render(w); err != nil {
		h.logger.Error("Failed to render page", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, msgRenderFailed)
	}
}
