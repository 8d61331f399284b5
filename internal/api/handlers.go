// Package api provides HTTP handlers for QuoteHub endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/medicarekit/quotehub/internal/models"
	"github.com/medicarekit/quotehub/internal/orchestrator"
	"github.com/medicarekit/quotehub/internal/validation"
)

// validateStep returns the missing required fields for one category.
func validateStep(category models.Category, form *models.QuoteFormData) []string {
	return validation.Validate(category, form).Missing
}

// submitRequest is the payload for starting an orchestration round.
type submitRequest struct {
	Form        models.QuoteFormData `json:"form"`
	Categories  []models.Category    `json:"categories"`
	PlanLetters []string             `json:"plan_letters,omitempty"`
}

// quotesResult is the payload returned by the quotes endpoint.
type quotesResult struct {
	Quotes         []models.Quote  `json:"quotes"`
	AvailablePlans map[string]bool `json:"available_plans,omitempty"`
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := uuid.NewString()
	s.session(sessionID)
	slog.Info("Server.createSessionHandler: session created", "session_id", sessionID)
	writeJSONResponse(w, http.StatusCreated, models.Success(map[string]string{"session_id": sessionID}))
}

func (s *Server) submitQuotesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := r.PathValue("id")
	slog.Debug("Server.submitQuotesHandler: processing submission", "session_id", sessionID)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitQuotesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	orch := s.session(sessionID)
	steps, err := orch.BuildPlan(orchestrator.Selection{
		Categories:  req.Categories,
		PlanLetters: req.PlanLetters,
	})
	if err != nil {
		slog.Warn("Server.submitQuotesHandler: plan build failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	// Validation happens synchronously so missing fields block with a 400;
	// the round itself runs past the request.
	missing := make(map[models.Category][]string)
	for _, step := range steps {
		if result := validateStep(step.Category, &req.Form); len(result) > 0 {
			missing[step.Category] = result
		}
	}
	if len(missing) > 0 {
		verr := &orchestrator.ValidationError{Missing: missing}
		slog.Warn("Server.submitQuotesHandler: validation failed", "session_id", sessionID, "missing", missing)
		writeJSONResponse(w, http.StatusBadRequest, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(verr.Error()).
			WithResult(missing).
			Build())
		return
	}

	go func() {
		if err := orch.Run(context.Background(), &req.Form, steps); err != nil {
			var verr *orchestrator.ValidationError
			if !errors.As(err, &verr) {
				slog.Error("Server.submitQuotesHandler: round failed", "error", err, "session_id", sessionID)
			}
		}
	}()

	slog.Info("Server.submitQuotesHandler: round accepted", "session_id", sessionID, "steps", len(steps))
	writeJSONResponse(w, http.StatusAccepted, models.SuccessWithMessage("Quote round started", steps))
}

func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	orch := s.session(sessionID)
	writeJSONResponse(w, http.StatusOK, models.Success(orch.Snapshot()))
}

func (s *Server) quotesHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	category := models.Category(r.URL.Query().Get("category"))
	plan := r.URL.Query().Get("plan")

	if !models.IsValidCategory(category) {
		slog.Warn("Server.quotesHandler: invalid category", "category", category)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrInvalidCategory.Error()))
		return
	}

	orch := s.session(sessionID)
	result := quotesResult{Quotes: orch.Quotes(category, plan)}
	if category == models.CategoryMedigap {
		result.AvailablePlans = orch.AvailablePlans()
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	orch := s.session(sessionID)
	orch.Reset()
	s.dropSession(sessionID)
	slog.Info("Server.deleteSessionHandler: session reset", "session_id", sessionID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session reset", nil))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"state": "healthy"}))
}
