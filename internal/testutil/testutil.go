// Package testutil provides common test utilities and helpers for QuoteHub tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/medicarekit/quotehub/internal/models"
)

// FakeProvider is a scripted provider for orchestrator and API tests. It
// returns the configured quotes or error, after an optional delay, and
// counts how many fetches actually ran (for dedup assertions).
type FakeProvider struct {
	ProviderCategory models.Category
	Quotes           []models.Quote
	Err              error
	Delay            time.Duration

	fetchCount atomic.Int64
}

// Category returns the scripted category.
func (f *FakeProvider) Category() models.Category {
	return f.ProviderCategory
}

// FetchQuotes returns the scripted result after the scripted delay.
func (f *FakeProvider) FetchQuotes(ctx context.Context, form *models.QuoteFormData, plans []string) ([]models.Quote, error) {
	f.fetchCount.Add(1)
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	quotes := make([]models.Quote, len(f.Quotes))
	copy(quotes, f.Quotes)
	return quotes, nil
}

// FetchCount reports how many fetches actually ran.
func (f *FakeProvider) FetchCount() int64 {
	return f.fetchCount.Load()
}

// MakeQuote builds a normalized quote fixture.
func MakeQuote(category models.Category, plan, carrier string, premiumCents int64) models.Quote {
	return models.Quote{
		ID:                  fmt.Sprintf("%s-%s-%s", category, plan, carrier),
		Category:            category,
		PlanType:            plan,
		Carrier:             carrier,
		MonthlyPremiumCents: premiumCents,
	}
}

// MedigapQuotes builds one quote fixture per plan letter.
func MedigapQuotes(letters ...string) []models.Quote {
	quotes := make([]models.Quote, 0, len(letters))
	for _, letter := range letters {
		quotes = append(quotes, MakeQuote(models.CategoryMedigap, letter, "Acme Mutual", 12000))
	}
	return quotes
}

// BoolPtr returns a pointer to b, for the form's tobacco field.
func BoolPtr(b bool) *bool {
	return &b
}

// ValidMedigapForm returns a form that passes medigap validation.
func ValidMedigapForm() *models.QuoteFormData {
	return &models.QuoteFormData{
		Age:        "67",
		ZipCode:    "75001",
		Gender:     models.GenderFemale,
		TobaccoUse: BoolPtr(false),
	}
}
