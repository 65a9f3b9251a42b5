package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"quantum-stock/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON name so errors line up with form inputs
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return domain.IsValidCategory(fl.Field().String())
	})
}

// FieldError is one failed field, carrying the message shown next to the input
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when a struct fails validation
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Message returns the message for a field, or "" when the field is valid
func (e *Error) Message(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// Map returns field → message
func (e *Error) Map() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Field] = f.Message
	}
	return m
}

// Struct validates v against its validate tags
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return &Error{Fields: Format(verrs)}
}

// Product validates a create/update payload
func Product(in domain.ProductInput) error {
	return Struct(in)
}

// Format converts validator errors to field messages, one per field
func Format(verrs validator.ValidationErrors) []FieldError {
	seen := make(map[string]bool)
	fields := []FieldError{}
	for _, e := range verrs {
		if seen[e.Field()] {
			continue
		}
		seen[e.Field()] = true
		fields = append(fields, FieldError{
			Field:   e.Field(),
			Message: message(e),
		})
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields
}

func message(e validator.FieldError) string {
	switch e.Field() {
	case "name":
		if e.Tag() == "max" {
			return "El nombre no puede superar " + e.Param() + " caracteres"
		}
		return "El nombre es requerido"
	case "description":
		if e.Tag() == "max" {
			return "La descripción no puede superar " + e.Param() + " caracteres"
		}
		return "La descripción es requerida"
	case "category":
		if e.Tag() == "category" {
			return "La categoría no es válida"
		}
		return "La categoría es requerida"
	case "price":
		return "El precio debe ser mayor a 0"
	case "quantity":
		return "La cantidad inicial no puede ser negativa"
	case "minQuantity":
		return "El stock mínimo no puede ser negativo"
	}

	switch e.Tag() {
	case "required", "notblank":
		return "Este campo es requerido"
	case "email":
		return "Formato de correo inválido"
	case "min":
		return "El valor es demasiado corto"
	case "max":
		return "El valor es demasiado largo"
	case "gte":
		return "El valor debe ser mayor o igual a " + e.Param()
	case "lte":
		return "El valor debe ser menor o igual a " + e.Param()
	case "gt":
		return "El valor debe ser mayor a " + e.Param()
	case "lt":
		return "El valor debe ser menor a " + e.Param()
	default:
		return "Valor inválido"
	}
}
