// Package provider implements the HTTP adapter for quote backends.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/medicarekit/quotehub/internal/models"
	"github.com/medicarekit/quotehub/internal/util"
	"github.com/medicarekit/quotehub/internal/validation"
)

// Paths of the quoting gateway, one per category.
var categoryPaths = map[models.Category]string{
	models.CategoryMedigap:           "/quotes/medigap",
	models.CategoryAdvantage:         "/quotes/advantage",
	models.CategoryDrugPlan:          "/quotes/drug-plan",
	models.CategoryDental:            "/quotes/dental",
	models.CategoryCancer:            "/quotes/cancer",
	models.CategoryHospitalIndemnity: "/quotes/hospital-indemnity",
	models.CategoryFinalExpense:      "/quotes/final-expense",
}

// envelope is the response shape shared by every quote backend.
type envelope struct {
	Quotes []json.RawMessage `json:"quotes"`
	Error  string            `json:"error"`
}

// HTTPProvider fetches quotes from a quoting gateway over HTTP JSON.
type HTTPProvider struct {
	category models.Category
	baseURL  string
	client   *http.Client
}

// NewHTTPProvider creates an HTTP provider for one category against the
// given gateway base URL. A nil client falls back to http.DefaultClient;
// request deadlines are the caller's responsibility via context.
func NewHTTPProvider(category models.Category, baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{category: category, baseURL: baseURL, client: client}
}

// RegisterHTTPProviders installs an HTTP provider for every category.
func RegisterHTTPProviders(reg *Registry, baseURL string, client *http.Client) {
	for _, category := range models.AllCategories {
		reg.Register(NewHTTPProvider(category, baseURL, client))
	}
}

// Category returns the category this provider serves.
func (p *HTTPProvider) Category() models.Category {
	return p.category
}

// FetchQuotes posts the category's request contract to the gateway and
// normalizes the response payloads.
func (p *HTTPProvider) FetchQuotes(ctx context.Context, form *models.QuoteFormData, plans []string) ([]models.Quote, error) {
	reqID := util.GenerateRandomID("req_", 12)
	payload, err := p.buildRequest(form, plans)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", p.category, err)
	}

	url := p.baseURL + categoryPaths[p.category]
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", p.category, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	slog.Debug("HTTPProvider.FetchQuotes: sending request", "category", p.category, "request_id", reqID, "plans", plans)
	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("HTTPProvider.FetchQuotes: request failed", "category", p.category, "request_id", reqID, "error", err)
		return nil, fmt.Errorf("%s quote request failed: %w", p.category, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", p.category, err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("HTTPProvider.FetchQuotes: non-OK status", "category", p.category, "request_id", reqID, "status", resp.StatusCode)
		return nil, fmt.Errorf("%s quote backend returned status %d: %s", p.category, resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", p.category, err)
	}
	if env.Error != "" {
		return nil, errors.New(env.Error)
	}

	quotes := NormalizeQuotes(p.category, env.Quotes)
	slog.Debug("HTTPProvider.FetchQuotes: succeeded", "category", p.category, "request_id", reqID, "count", len(quotes))
	return quotes, nil
}

// buildRequest assembles the category's wire contract from form data.
func (p *HTTPProvider) buildRequest(form *models.QuoteFormData, plans []string) (interface{}, error) {
	switch p.category {
	case models.CategoryMedigap:
		age, err := validation.ParseAge(form.Age)
		if err != nil {
			return nil, fmt.Errorf("medigap request needs a valid age: %w", err)
		}
		return MedigapRequest{
			ZipCode: form.ZipCode,
			Age:     age,
			Gender:  GenderCode(form.Gender),
			Tobacco: TobaccoFlag(form.TobaccoUse),
			Plans:   plans,
		}, nil
	case models.CategoryDental:
		age := optionalAge(form.Age)
		return DentalRequest{
			Age:            age,
			ZipCode:        form.ZipCode,
			Gender:         string(form.Gender),
			TobaccoUse:     form.TobaccoUse != nil && *form.TobaccoUse,
			CoveredMembers: form.CoveredMembers,
		}, nil
	case models.CategoryHospitalIndemnity:
		return HospitalIndemnityRequest{
			ZipCode:    form.ZipCode,
			Age:        optionalAge(form.Age),
			Gender:     string(form.Gender),
			TobaccoUse: form.TobaccoUse != nil && *form.TobaccoUse,
		}, nil
	case models.CategoryFinalExpense:
		return FinalExpenseRequest{
			ZipCode:          form.ZipCode,
			Age:              optionalAge(form.Age),
			Gender:           string(form.Gender),
			TobaccoUse:       form.TobaccoUse != nil && *form.TobaccoUse,
			DesiredFaceValue: form.DesiredFaceValue,
			DesiredRate:      form.DesiredRate,
			UnderwritingType: form.UnderwritingType,
		}, nil
	case models.CategoryCancer:
		age, err := validation.ParseAge(form.Age)
		if err != nil {
			return nil, fmt.Errorf("cancer request needs a valid age: %w", err)
		}
		return CancerRequest{
			State:           form.State,
			Age:             age,
			FamilyType:      form.FamilyType,
			TobaccoStatus:   form.TobaccoUse != nil && *form.TobaccoUse,
			PremiumMode:     form.PremiumMode,
			CarcinomaInSitu: form.CarcinomaInSitu,
			BenefitAmount:   form.BenefitAmount,
		}, nil
	default:
		// Advantage and drug plan backends take the form data directly.
		return GenericRequest{
			ZipCode: form.ZipCode,
			Age:     form.Age,
			Gender:  string(form.Gender),
		}, nil
	}
}

// optionalAge parses age for categories that quote without it; the
// documented default applies only here, never where age is required.
func optionalAge(raw string) int {
	age, err := validation.ParseAge(raw)
	if err != nil {
		return validation.DefaultAge
	}
	return age
}
