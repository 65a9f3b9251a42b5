package mutation

import (
	"errors"
	"net/http"

	"quantum-stock/internal/repository"
	"quantum-stock/internal/validation"
)

// Kind classifies a mutation failure
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindNotFound   Kind = "not_found"
	KindServer     Kind = "server"
	KindNetwork    Kind = "network"
	KindRequest    Kind = "request"
)

// User-facing messages
const (
	MsgTokenRequired      = "Token de autenticación requerido"
	MsgDeleteForbidden    = "No tienes permisos para eliminar productos"
	MsgUpdateIDRequired   = "ID del producto requerido"
	MsgDeleteIDRequired   = "Se requiere un ID de producto para eliminarlo"
	MsgInvalidForm        = "El formulario contiene errores"
	MsgSessionExpired     = "Tu sesión ha expirado. Por favor, inicia sesión nuevamente."
	MsgForbidden          = "No tienes permisos para realizar esta acción."
	MsgUpdateForbidden    = "No tienes permisos para actualizar este producto."
	MsgNotFound           = "El producto no existe."
	MsgDeleteNotFound     = "El producto no existe o ya fue eliminado."
	MsgServerError        = "Error interno del servidor. Inténtalo más tarde."
	MsgServiceUnavailable = "No se pudo conectar con el servidor. Inténtalo más tarde."
)

// Error is the error handed to OnError
type Error struct {
	Op      repository.Operation
	Kind    Kind
	Status  int
	Message string
	Fields  map[string]string // validation messages by field
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func preconditionError(op repository.Operation, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Message: msg}
}

func validationError(op repository.Operation, err error) *Error {
	e := &Error{Op: op, Kind: KindValidation, Message: MsgInvalidForm, Err: err}
	var verr *validation.Error
	if errors.As(err, &verr) {
		e.Fields = verr.Map()
	}
	return e
}

// mapError converts a repository failure to the message shown to the user
func mapError(op repository.Operation, err error) *Error {
	var apiErr *repository.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, repository.ErrUnavailable) {
			return &Error{Op: op, Kind: KindNetwork, Message: MsgServiceUnavailable, Err: err}
		}
		return &Error{Op: op, Kind: KindRequest, Message: err.Error(), Err: err}
	}

	e := &Error{Op: op, Status: apiErr.Status, Message: apiErr.Message, Kind: KindRequest, Err: err}
	switch {
	case apiErr.Status == http.StatusUnauthorized:
		e.Kind, e.Message = KindAuth, MsgSessionExpired
	case apiErr.Status == http.StatusForbidden:
		e.Kind, e.Message = KindPermission, MsgForbidden
		if op == repository.OpUpdate {
			e.Message = MsgUpdateForbidden
		}
	case apiErr.Status == http.StatusNotFound:
		e.Kind, e.Message = KindNotFound, MsgNotFound
		if op == repository.OpDelete {
			e.Message = MsgDeleteNotFound
		}
	case apiErr.Status >= http.StatusInternalServerError:
		e.Kind, e.Message = KindServer, MsgServerError
	}
	return e
}
