package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnauthorized    = errors.New("session expired or missing")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrServer          = errors.New("products service error")
	ErrUnavailable     = errors.New("products service unavailable")
)

// Operation names a REST call for error reporting
type Operation string

const (
	OpList   Operation = "list"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (op Operation) failure() string {
	switch op {
	case OpCreate:
		return "No se pudo crear el producto"
	case OpUpdate:
		return "No se pudo actualizar el producto"
	case OpDelete:
		return "No se pudo eliminar el producto"
	default:
		return "No se pudieron obtener los productos"
	}
}

// APIError is a non-2xx answer from the products API
type APIError struct {
	Op      Operation
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap maps well-known statuses to sentinel errors
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return ErrForbidden
	case e.Status == http.StatusNotFound:
		return ErrProductNotFound
	case e.Status >= 500:
		return ErrServer
	default:
		return nil
	}
}

// errorBody matches the API error payload; message is a string or, for
// validation failures, a list of strings
type errorBody struct {
	Status  int             `json:"status"`
	Error   string          `json:"error"`
	Message json.RawMessage `json:"message"`
}

func newAPIError(op Operation, status int, body []byte) *APIError {
	msg := parseErrorMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("Error %d: %s", status, op.failure())
	}
	return &APIError{Op: op, Status: status, Message: msg}
}

func parseErrorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if len(eb.Message) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Message, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []string
	if err := json.Unmarshal(eb.Message, &list); err == nil {
		return strings.Join(list, ". ")
	}

	return ""
}
