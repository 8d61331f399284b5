// Package provider defines the quote-fetching boundary of QuoteHub.
//
// Each insurance category is served by an external quoting backend. This
// package owns the per-category request contracts, the normalization of the
// backends' shape-varying quote payloads into models.Quote, and the
// classification of provider failures into user-facing error text. The core
// never sees a raw provider payload.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/medicarekit/quotehub/internal/models"
)

// Provider fetches quotes for a single insurance category.
type Provider interface {
	// Category returns the category this provider serves.
	Category() models.Category
	// FetchQuotes requests quotes for the given form data. The plans
	// argument carries medigap plan letters and is nil for other
	// categories. Returned quotes are normalized.
	FetchQuotes(ctx context.Context, form *models.QuoteFormData, plans []string) ([]models.Quote, error)
}

// Registry maps categories to their providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[models.Category]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[models.Category]Provider)}
}

// Register installs a provider for its category, replacing any previous one.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slog.Debug("Registry.Register: registering provider", "category", p.Category())
	r.providers[p.Category()] = p
}

// Get returns the provider for a category.
func (r *Registry) Get(category models.Category) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[category]
	return p, ok
}

// Fetch looks up the provider for a category and fetches quotes through it.
func (r *Registry) Fetch(ctx context.Context, category models.Category, form *models.QuoteFormData, plans []string) ([]models.Quote, error) {
	p, ok := r.Get(category)
	if !ok {
		return nil, fmt.Errorf("no provider registered for category %s", category)
	}
	return p.FetchQuotes(ctx, form, plans)
}

// MedigapRequest is the wire contract of the medigap quoting backend.
// Gender is 'M'/'F' and tobacco is '0'/'1', per the upstream API.
type MedigapRequest struct {
	ZipCode string   `json:"zipCode"`
	Age     int      `json:"age"`
	Gender  string   `json:"gender"`
	Tobacco string   `json:"tobacco"`
	Plans   []string `json:"plans"`
}

// DentalRequest is the wire contract of the dental quoting backend.
type DentalRequest struct {
	Age            int    `json:"age"`
	ZipCode        string `json:"zipCode"`
	Gender         string `json:"gender"`
	TobaccoUse     bool   `json:"tobaccoUse"`
	CoveredMembers string `json:"coveredMembers"`
}

// HospitalIndemnityRequest is the wire contract of the hospital indemnity backend.
type HospitalIndemnityRequest struct {
	ZipCode    string `json:"zipCode"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	TobaccoUse bool   `json:"tobaccoUse"`
}

// FinalExpenseRequest is the wire contract of the final expense life backend.
type FinalExpenseRequest struct {
	ZipCode          string `json:"zipCode"`
	Age              int    `json:"age"`
	Gender           string `json:"gender"`
	TobaccoUse       bool   `json:"tobaccoUse"`
	DesiredFaceValue string `json:"desiredFaceValue"`
	DesiredRate      string `json:"desiredRate,omitempty"`
	UnderwritingType string `json:"underwritingType,omitempty"`
}

// CancerRequest is the wire contract of the cancer insurance backend.
// Only TX and GA are quotable states upstream.
type CancerRequest struct {
	State           string `json:"state"`
	Age             int    `json:"age"`
	FamilyType      string `json:"familyType"`
	TobaccoStatus   bool   `json:"tobaccoStatus"`
	PremiumMode     string `json:"premiumMode"`
	CarcinomaInSitu string `json:"carcinomaInSitu"`
	BenefitAmount   string `json:"benefitAmount,omitempty"`
}

// GenericRequest is the wire contract of the advantage and drug plan
// backends, which accept the form data directly.
type GenericRequest struct {
	ZipCode string `json:"zipCode"`
	Age     string `json:"age,omitempty"`
	Gender  string `json:"gender,omitempty"`
}

// GenderCode converts a form gender to the single-letter code the medigap
// backend expects.
func GenderCode(g models.Gender) string {
	if g == models.GenderFemale {
		return "F"
	}
	return "M"
}

// TobaccoFlag converts a tobacco answer to the '0'/'1' flag the medigap
// backend expects. Unanswered maps to '0'.
func TobaccoFlag(tobacco *bool) string {
	if tobacco != nil && *tobacco {
		return "1"
	}
	return "0"
}
