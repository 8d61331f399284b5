// Package provider normalizes shape-varying quote payloads.
package provider

import (
	"math"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/medicarekit/quotehub/internal/models"
)

// centsThreshold drives the cents-vs-dollars heuristic: backends disagree on
// units, and any premium figure at or above this value is assumed to already
// be in cents.
const centsThreshold = 100

// monthsPerSemiAnnual converts a semi-annual rate into a monthly figure.
const monthsPerSemiAnnual = 6

// rawRate carries the nested rate shapes some backends use.
type rawRate struct {
	Month      *float64 `json:"month"`
	SemiAnnual *float64 `json:"semi_annual"`
}

// rawCompany carries the nested carrier shape some backends use.
type rawCompany struct {
	Name string `json:"name"`
}

// rawQuote is the superset of fields the core touches generically across
// every backend's payload. Everything else stays opaque in Raw.
type rawQuote struct {
	ID             string      `json:"id"`
	Key            string      `json:"key"`
	Plan           string      `json:"plan"`
	CompanyName    string      `json:"company_name"`
	CompanyBase    *rawCompany `json:"company_base"`
	MonthlyPremium *float64    `json:"monthly_premium"`
	Premium        *float64    `json:"premium"`
	Rate           *rawRate    `json:"rate"`
}

// NormalizeQuotes converts raw backend payloads into canonical quotes.
// Payloads that fail to decode are skipped rather than failing the batch;
// a single malformed record should not blank out a category.
func NormalizeQuotes(category models.Category, payloads []json.RawMessage) []models.Quote {
	quotes := make([]models.Quote, 0, len(payloads))
	for _, payload := range payloads {
		var raw rawQuote
		if err := json.Unmarshal(payload, &raw); err != nil {
			continue
		}
		quotes = append(quotes, normalizeQuote(category, raw, payload))
	}
	return quotes
}

func normalizeQuote(category models.Category, raw rawQuote, payload json.RawMessage) models.Quote {
	id := raw.ID
	if id == "" {
		id = raw.Key
	}
	if id == "" {
		id = uuid.NewString()
	}
	carrier := raw.CompanyName
	if carrier == "" && raw.CompanyBase != nil {
		carrier = raw.CompanyBase.Name
	}
	return models.Quote{
		ID:                  id,
		Category:            category,
		PlanType:            strings.ToUpper(strings.TrimSpace(raw.Plan)),
		Carrier:             carrier,
		MonthlyPremiumCents: monthlyPremiumCents(raw),
		Raw:                 payload,
	}
}

// monthlyPremiumCents resolves the premium from whichever field the backend
// populated, in priority order: monthly_premium, rate.month,
// rate.semi_annual (divided down to monthly), then premium.
func monthlyPremiumCents(raw rawQuote) int64 {
	if raw.MonthlyPremium != nil {
		return toCents(*raw.MonthlyPremium)
	}
	if raw.Rate != nil {
		if raw.Rate.Month != nil {
			return toCents(*raw.Rate.Month)
		}
		if raw.Rate.SemiAnnual != nil {
			return toCents(*raw.Rate.SemiAnnual) / monthsPerSemiAnnual
		}
	}
	if raw.Premium != nil {
		return toCents(*raw.Premium)
	}
	return 0
}

// toCents applies the cents-vs-dollars heuristic: values >= 100 are already
// cents, smaller values are dollars.
func toCents(v float64) int64 {
	if v >= centsThreshold {
		return int64(math.Round(v))
	}
	return int64(math.Round(v * 100))
}
