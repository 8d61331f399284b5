// Package validation gates quote submissions before any provider call.
//
// Validation is pure: it combines the registry's required and additional
// field sets for a category and reports which fields the form is missing.
// It never contacts a provider or the store.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/medicarekit/quotehub/internal/models"
	"github.com/medicarekit/quotehub/internal/registry"
)

// Age bounds accepted on quote forms. Providers reject anything outside
// the Medicare-eligible range anyway, so bad input fails fast here.
const (
	MinAge = 18
	MaxAge = 120
	// DefaultAge is applied only for categories that quote without age.
	DefaultAge = 65
)

// ErrAgeOutOfRange indicates a parseable age outside the accepted bounds.
var ErrAgeOutOfRange = errors.New("age out of accepted range")

// Result reports the outcome of validating a form against one category.
type Result struct {
	IsValid bool     `json:"is_valid"`
	Missing []string `json:"missing,omitempty"`
}

// Validate checks that the form carries every field the category requires.
// Missing lists each absent field in registry order (required first, then
// additional). Empty string, nil tobacco answer, and unset optional fields
// all count as missing.
func Validate(category models.Category, form *models.QuoteFormData) Result {
	var missing []string
	for _, field := range registry.RequiredFields(category) {
		if !form.FieldIsSet(field) {
			missing = append(missing, field)
		}
	}
	for _, field := range registry.AdditionalFields(category) {
		if !form.FieldIsSet(field) {
			missing = append(missing, field)
		}
	}
	return Result{IsValid: len(missing) == 0, Missing: missing}
}

// ParseAge parses the form's age field into an integer. Unlike the legacy
// behavior of silently defaulting to 65, a malformed value is an explicit
// error so the caller can surface it as a validation failure.
func ParseAge(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("age is empty")
	}
	age, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("age %q is not a number: %w", raw, err)
	}
	if age < MinAge || age > MaxAge {
		return 0, fmt.Errorf("age %d: %w", age, ErrAgeOutOfRange)
	}
	return age, nil
}
