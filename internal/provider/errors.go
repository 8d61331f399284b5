// Package provider classifies quote backend failures for user display.
package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/medicarekit/quotehub/internal/models"
	"github.com/medicarekit/quotehub/internal/registry"
)

// ErrorKind buckets provider failures into the classes the UI distinguishes.
type ErrorKind int

const (
	// ErrorKindGeneric is any failure that matches no known pattern.
	ErrorKindGeneric ErrorKind = iota
	// ErrorKindTimeout matches deadline-exceeded / timeout failures.
	ErrorKindTimeout
	// ErrorKindInternal matches backend overload / out-of-memory failures.
	ErrorKindInternal
)

// Sentinel errors for testability.
var (
	ErrProviderTimeout  = errors.New("quote provider timed out")
	ErrProviderInternal = errors.New("quote provider internal failure")
)

// Classify inspects a provider failure's text for known patterns. Detection
// is reactive: the backends do not return structured error codes, so the
// message is all there is to go on.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindGeneric
	}
	if errors.Is(err, ErrProviderTimeout) {
		return ErrorKindTimeout
	}
	if errors.Is(err, ErrProviderInternal) {
		return ErrorKindInternal
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline-exceeded"), strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"), strings.Contains(msg, "context deadline exceeded"):
		return ErrorKindTimeout
	case strings.Contains(msg, "functions/internal"), strings.Contains(msg, "memory"):
		return ErrorKindInternal
	default:
		return ErrorKindGeneric
	}
}

// UserMessage renders a category-specific, user-actionable message for a
// provider failure. Timeout messages always contain "timed out" and name the
// category so the UI can show a retry affordance with context.
func UserMessage(category models.Category, plans []string, err error) string {
	name := registry.DisplayNames(category, plans)[0]
	switch Classify(err) {
	case ErrorKindTimeout:
		return fmt.Sprintf("Your %s request timed out. Please try again, or narrow your selection to fewer plan types.", name)
	case ErrorKindInternal:
		return fmt.Sprintf("The %s quoting service is under heavy load right now. Please try again in a moment.", name)
	default:
		if err != nil && err.Error() != "" {
			return fmt.Sprintf("Unable to load %s: %s", name, err.Error())
		}
		return fmt.Sprintf("Unable to load %s. Please try again.", name)
	}
}
