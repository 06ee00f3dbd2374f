package validation

import (
	"sort"
	"strings"

	"github.com/shepherd-hub/backend/pkg/response"
)

// Error carries per-field messages from service-level checks that struct tags cannot express.
type Error struct {
	Fields response.FieldErrors
}

// NewError returns an *Error for a single field.
func NewError(field, msg string) *Error {
	return &Error{Fields: response.FieldErrors{field: msg}}
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
