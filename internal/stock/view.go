package stock

import (
	"errors"

	"quantum-stock/internal/domain"
	"quantum-stock/internal/mutation"
	"quantum-stock/internal/querystate"
	"quantum-stock/internal/repository"
)

// View is everything needed to render the screen
type View struct {
	Address       string
	State         querystate.State
	Access        Access
	SearchInput   string
	MinPriceInput string
	MaxPriceInput string
	Page          *domain.PageResult
	Rows          []Row
	Stats         Stats
	Pages         []int
	Range         Range
	IsLoading     bool
	IsValidating  bool
	IsSubmitting  bool
	Banner        string
	ViewMode      ViewMode
	Modal         Modal
}

// BuildView derives the rendered list from state and the fetched page. A
// nil page renders as empty; err becomes the banner.
func BuildView(state querystate.State, address string, page *domain.PageResult, err error) View {
	if page == nil {
		page = domain.EmptyPage()
	}

	view := View{
		Address:       address,
		State:         state,
		SearchInput:   state.Query,
		MinPriceInput: priceText(state.MinPrice),
		MaxPriceInput: priceText(state.MaxPrice),
		Page:          page,
		Rows:          Rows(page.Products),
		Stats:         ComputeStats(page.Products),
		Pages:         VisiblePages(state.Page, page.TotalPages),
		Range:         RangeFor(state.Page, state.Size, page.TotalElements),
		ViewMode:      ViewTable,
	}
	if err != nil {
		view.Banner = ListErrorMessage(err)
	}
	return view
}

// HasPrev reports whether a previous page exists
func (v View) HasPrev() bool {
	return v.State.Page > 1
}

// HasNext reports whether a next page exists
func (v View) HasNext() bool {
	return v.State.Page < v.Page.TotalPages
}

// PrevPage is the page before the current one
func (v View) PrevPage() int {
	return max(1, v.State.Page-1)
}

// NextPage is the page after the current one
func (v View) NextPage() int {
	return min(v.Page.TotalPages, v.State.Page+1)
}

// ListErrorMessage turns a list fetch failure into banner text
func ListErrorMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrUnauthorized):
		return mutation.MsgSessionExpired
	case errors.Is(err, repository.ErrForbidden):
		return mutation.MsgForbidden
	case errors.Is(err, repository.ErrUnavailable):
		return mutation.MsgServiceUnavailable
	case errors.Is(err, repository.ErrServer):
		return mutation.MsgServerError
	default:
		return err.Error()
	}
}
