// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// --- Pagination ---

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// PaginationRequest contains limit/offset parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Defaults sets default pagination values.
func (p *PaginationRequest) Defaults() {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
}

// ListResponse wraps list results with the applied window.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewListResponse never renders items as null.
func NewListResponse[T any](items []T, p PaginationRequest) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Limit: p.Limit, Offset: p.Offset}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Validation ---

var (
	registerOnce   sync.Once
	customerCodeRe = regexp.MustCompile(`^\d{1,4}$`)
)

// RegisterValidators installs the custom binding rules on gin's validator
// and reports fields by their json/form name. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("customercode", func(fl validator.FieldLevel) bool {
			code := strings.TrimSpace(fl.Field().String())
			return code == "" || customerCodeRe.MatchString(code)
		})
	})
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}
