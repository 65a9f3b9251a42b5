package stock

import "quantum-stock/internal/domain"

// ModalKind is the dialog currently open
type ModalKind int

const (
	ModalNone ModalKind = iota
	ModalAdd
	ModalEdit
	ModalDelete
)

func (k ModalKind) String() string {
	switch k {
	case ModalAdd:
		return "add"
	case ModalEdit:
		return "edit"
	case ModalDelete:
		return "delete"
	default:
		return "none"
	}
}

// Modal is the add/edit/delete dialog state
type Modal struct {
	Kind           ModalKind
	Product        *domain.Product // target of edit and delete
	Draft          domain.ProductInput
	FieldErrors    map[string]string
	Error          string
	ConfirmDiscard bool // the discard-changes prompt is showing

	initial domain.ProductInput
}

// Open reports whether a dialog is showing
func (m Modal) Open() bool {
	return m.Kind != ModalNone
}

// Dirty reports whether the form differs from what it was opened with
func (m Modal) Dirty() bool {
	if m.Kind != ModalAdd && m.Kind != ModalEdit {
		return false
	}
	return m.Draft != m.initial
}

func newFormModal(kind ModalKind, product *domain.Product, initial domain.ProductInput) Modal {
	return Modal{Kind: kind, Product: product, Draft: initial, initial: initial}
}

func emptyDraft() domain.ProductInput {
	return domain.ProductInput{Category: string(domain.Categories[0])}
}
