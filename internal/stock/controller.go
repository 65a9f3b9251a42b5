// Package stock is the headless stock screen: it keeps the address, the
// debounced filter inputs, the product list query and the dialogs in step.
package stock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"quantum-stock/internal/auth"
	"quantum-stock/internal/debounce"
	"quantum-stock/internal/domain"
	"quantum-stock/internal/fetcher"
	"quantum-stock/internal/mutation"
	"quantum-stock/internal/querystate"
	"quantum-stock/internal/repository"

	"go.uber.org/zap"
)

const (
	DefaultSearchDelay     = 500 * time.Millisecond
	DefaultPriceDelay      = 400 * time.Millisecond
	DefaultSearchMinLength = 2
)

// Options configures a Controller
type Options struct {
	PageSize        int
	SearchDelay     time.Duration
	PriceDelay      time.Duration
	SearchMinLength int
	Clock           debounce.Clock
	Logger          *zap.Logger
	OnChange        func(View)
}

func (o *Options) withDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = querystate.DefaultPageSize
	}
	if o.SearchDelay <= 0 {
		o.SearchDelay = DefaultSearchDelay
	}
	if o.PriceDelay <= 0 {
		o.PriceDelay = DefaultPriceDelay
	}
	if o.SearchMinLength <= 0 {
		o.SearchMinLength = DefaultSearchMinLength
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Controller drives the stock screen
type Controller struct {
	address *querystate.Address
	fetcher *fetcher.Fetcher
	repo    repository.ProductRepository
	query   *fetcher.Query
	opts    Options
	logger  *zap.Logger

	search   *debounce.Input
	minPrice *debounce.Input
	maxPrice *debounce.Input

	unsubscribe func()

	mu         sync.Mutex
	session    auth.Session
	access     Access
	viewMode   ViewMode
	modal      Modal
	banner     string
	submitting bool
}

// New creates a Controller over address. The list is not fetched until a
// session with access is set.
func New(ctx context.Context, address *querystate.Address, f *fetcher.Fetcher, repo repository.ProductRepository, opts Options) *Controller {
	opts.withDefaults()

	c := &Controller{
		address:  address,
		fetcher:  f,
		repo:     repo,
		opts:     opts,
		logger:   opts.Logger,
		access:   AccessChecking,
		viewMode: ViewTable,
	}
	c.query = fetcher.NewQuery(ctx, f, func(fetcher.Snapshot) { c.notify() })

	state := address.State(opts.PageSize)
	c.search = debounce.New(state.Query, c.commitSearch, debounce.Options{
		Name:      querystate.KeyQuery,
		Delay:     opts.SearchDelay,
		MinLength: opts.SearchMinLength,
		Clock:     opts.Clock,
		Logger:    opts.Logger,
	})
	c.minPrice = debounce.New(priceText(state.MinPrice), c.commitPrice(querystate.KeyMinPrice), debounce.Options{
		Name:   querystate.KeyMinPrice,
		Delay:  opts.PriceDelay,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	})
	c.maxPrice = debounce.New(priceText(state.MaxPrice), c.commitPrice(querystate.KeyMaxPrice), debounce.Options{
		Name:   querystate.KeyMaxPrice,
		Delay:  opts.PriceDelay,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	})

	c.unsubscribe = address.Subscribe(c.onAddressChange)

	return c
}

// Close stops pending input commits and waits for in-flight fetches
func (c *Controller) Close() {
	c.unsubscribe()
	c.search.Stop()
	c.minPrice.Stop()
	c.maxPrice.Stop()
	c.query.Wait()
}

// SetSession applies the identity provider's session and starts fetching
// once access is granted
func (c *Controller) SetSession(session auth.Session) Access {
	access := CheckAccess(session)

	c.mu.Lock()
	c.session = session
	c.access = access
	c.mu.Unlock()

	switch access {
	case AccessLogin:
		c.logger.Info("Stock screen requires login", zap.String("return_to", c.address.String()))
	case AccessDenied:
		c.logger.Warn("Stock screen denied", zap.String("username", session.Username))
	}

	c.syncKey()
	c.notify()
	return access
}

// Session returns the current session
func (c *Controller) Session() auth.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// TypeSearch buffers a search keystroke
func (c *Controller) TypeSearch(v string) {
	c.search.Set(v)
	c.notify()
}

// ClearSearch empties the search box and the filter immediately
func (c *Controller) ClearSearch() {
	c.search.Clear()
}

// TypeMinPrice buffers the minimum price field
func (c *Controller) TypeMinPrice(v string) {
	c.minPrice.Set(v)
	c.notify()
}

// TypeMaxPrice buffers the maximum price field
func (c *Controller) TypeMaxPrice(v string) {
	c.maxPrice.Set(v)
	c.notify()
}

// FlushInputs commits every pending field now
func (c *Controller) FlushInputs() {
	c.search.Flush()
	c.minPrice.Flush()
	c.maxPrice.Flush()
}

// SelectCategory filters by category; "all" or "" clears the filter
func (c *Controller) SelectCategory(category string) {
	value := ""
	if category != "" && category != string(domain.CategoryAll) {
		value = domain.NormalizeCategory(category)
	}
	c.address.Replace(querystate.Update{querystate.KeyCategory: value})
}

// GoToPage moves to 1-based page n
func (c *Controller) GoToPage(n int) {
	if n < 1 {
		n = 1
	}
	c.address.Replace(querystate.Update{querystate.KeyPage: strconv.Itoa(n)})
}

// ClearFilters drops every filter and returns to the first page
func (c *Controller) ClearFilters() {
	c.address.Replace(querystate.Update{
		querystate.KeyQuery:    "",
		querystate.KeyCategory: "",
		querystate.KeyMinPrice: "",
		querystate.KeyMaxPrice: "",
		querystate.KeyPage:     "1",
	})
	// The address may not change when no filter was set; the fields still reset
	c.search.Sync("")
	c.minPrice.Sync("")
	c.maxPrice.Sync("")
	c.notify()
}

// Refresh refetches the current page
func (c *Controller) Refresh() {
	c.query.Refresh()
}

// Wait blocks until the in-flight fetch, if any, has finished
func (c *Controller) Wait() {
	c.query.Wait()
}

// SetViewMode switches between table and cards
func (c *Controller) SetViewMode(mode ViewMode) {
	c.mu.Lock()
	c.viewMode = mode
	c.mu.Unlock()
	c.notify()
}

// DismissError hides the banner
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.banner = ""
	c.mu.Unlock()
	c.query.DismissError()
	c.notify()
}

// OpenAdd opens an empty product form
func (c *Controller) OpenAdd() {
	c.setModal(newFormModal(ModalAdd, nil, emptyDraft()))
}

// OpenEdit opens the form for p
func (c *Controller) OpenEdit(p domain.Product) {
	c.setModal(newFormModal(ModalEdit, &p, domain.InputFromProduct(p)))
}

// OpenDelete asks to confirm deleting p
func (c *Controller) OpenDelete(p domain.Product) {
	c.setModal(Modal{Kind: ModalDelete, Product: &p})
}

// FindProduct looks up id on the current page
func (c *Controller) FindProduct(id domain.ProductID) (domain.Product, bool) {
	data := c.query.Snapshot().Data
	if data == nil {
		return domain.Product{}, false
	}
	for _, p := range data.Products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// EditDraft changes the open form
func (c *Controller) EditDraft(edit func(*domain.ProductInput)) {
	c.mu.Lock()
	if c.modal.Kind != ModalAdd && c.modal.Kind != ModalEdit {
		c.mu.Unlock()
		return
	}
	edit(&c.modal.Draft)
	c.mu.Unlock()
	c.notify()
}

// RequestClose closes the dialog unless the form has unsaved changes, in
// which case the discard prompt is shown and false is returned
func (c *Controller) RequestClose() bool {
	c.mu.Lock()
	if c.modal.Dirty() {
		c.modal.ConfirmDiscard = true
		c.mu.Unlock()
		c.notify()
		return false
	}
	c.modal = Modal{}
	c.mu.Unlock()
	c.notify()
	return true
}

// ConfirmDiscard closes the dialog dropping unsaved changes
func (c *Controller) ConfirmDiscard() {
	c.setModal(Modal{})
}

// KeepEditing dismisses the discard prompt
func (c *Controller) KeepEditing() {
	c.mu.Lock()
	c.modal.ConfirmDiscard = false
	c.mu.Unlock()
	c.notify()
}

// Submit dispatches the open dialog: create, update or delete. On success
// the dialog closes and the list is refreshed.
func (c *Controller) Submit(ctx context.Context) bool {
	c.mu.Lock()
	modal := c.modal
	session := c.session
	if c.submitting || !modal.Open() {
		c.mu.Unlock()
		return false
	}
	c.modal.Error, c.modal.FieldErrors = "", nil
	c.submitting = true
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
		c.notify()
	}()

	callbacks := mutation.Callbacks{
		OnSuccess:     func(mutation.Result) { c.onMutationSuccess() },
		OnError:       c.onMutationError,
		OnStateChange: c.onMutationState,
	}

	switch modal.Kind {
	case ModalAdd:
		return mutation.NewCreator(c.repo, session, callbacks, c.logger).Create(ctx, modal.Draft)
	case ModalEdit:
		return mutation.NewUpdater(c.repo, session, callbacks, c.logger).Update(ctx, modal.Product.ID, modal.Draft)
	default:
		return mutation.NewDeleter(c.repo, session, callbacks, c.logger).Delete(ctx, modal.Product.ID)
	}
}

// View returns the current screen state
func (c *Controller) View() View {
	snap := c.query.Snapshot()
	view := BuildView(c.address.State(c.opts.PageSize), c.address.String(), snap.Data, snap.Err)
	view.IsLoading = snap.IsLoading
	view.IsValidating = snap.IsValidating
	view.SearchInput = c.search.Buffered()
	view.MinPriceInput = c.minPrice.Buffered()
	view.MaxPriceInput = c.maxPrice.Buffered()

	c.mu.Lock()
	defer c.mu.Unlock()

	view.Access = c.access
	view.IsSubmitting = c.submitting
	view.ViewMode = c.viewMode
	view.Modal = c.modal
	if view.Banner == "" {
		view.Banner = c.banner
	}
	return view
}

func (c *Controller) commitSearch(v string) {
	c.address.Replace(querystate.Update{querystate.KeyQuery: v})
}

func (c *Controller) commitPrice(key string) func(string) {
	return func(v string) {
		price := querystate.ParsePrice(v)
		value := ""
		if price > 0 {
			value = querystate.FormatPrice(price)
		}
		c.address.Replace(querystate.Update{key: value})
	}
}

// onAddressChange follows the address, including changes made elsewhere
// such as clearing all filters
func (c *Controller) onAddressChange(querystate.Params) {
	state := c.address.State(c.opts.PageSize)

	if state.Query != c.search.Committed() {
		c.search.Sync(state.Query)
	}
	if state.MinPrice != querystate.ParsePrice(c.minPrice.Committed()) {
		c.minPrice.Sync(priceText(state.MinPrice))
	}
	if state.MaxPrice != querystate.ParsePrice(c.maxPrice.Committed()) {
		c.maxPrice.Sync(priceText(state.MaxPrice))
	}

	c.syncKey()
	c.notify()
}

func (c *Controller) syncKey() {
	c.mu.Lock()
	token := ""
	if c.access == AccessGranted {
		token = c.session.Token
	}
	c.mu.Unlock()

	c.query.SetKey(fetcher.KeyFor(c.address.State(c.opts.PageSize), token))
}

// onMutationState only repaints; submitting is owned by Submit so that a
// second Submit cannot slip in before the dispatcher reports its state
func (c *Controller) onMutationState(mutation.State) {
	c.notify()
}

func (c *Controller) onMutationSuccess() {
	c.mu.Lock()
	c.modal = Modal{}
	c.banner = ""
	c.mu.Unlock()

	c.fetcher.InvalidateAll()
	c.query.Refresh()
}

func (c *Controller) onMutationError(err error) {
	c.mu.Lock()
	var merr *mutation.Error
	if errors.As(err, &merr) && merr.Kind == mutation.KindValidation {
		c.modal.FieldErrors = merr.Fields
	} else if c.modal.Open() {
		c.modal.Error = err.Error()
	} else {
		c.banner = err.Error()
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) setModal(m Modal) {
	c.mu.Lock()
	c.modal = m
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.View())
	}
}

func priceText(p float64) string {
	if p <= 0 {
		return ""
	}
	return querystate.FormatPrice(p)
}
