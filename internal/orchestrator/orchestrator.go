// Package orchestrator implements the quote execution planner.
//
// Given a user's selected categories and medigap plan letters it builds an
// execution plan, fires all category fetches concurrently, and funnels every
// state mutation through one mutex-guarded struct: progress bookkeeping via
// the tracker, merged quote buckets via the merge layer, and error state per
// the isolation policy (a single category's failure never blanks out an
// otherwise successful round). Categories complete in whatever order their
// fetches resolve; per-partition replace semantics make that safe.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/medicarekit/quotehub/internal/merge"
	"github.com/medicarekit/quotehub/internal/models"
	"github.com/medicarekit/quotehub/internal/progress"
	"github.com/medicarekit/quotehub/internal/provider"
	"github.com/medicarekit/quotehub/internal/registry"
	"github.com/medicarekit/quotehub/internal/store"
	"github.com/medicarekit/quotehub/internal/validation"
)

// Selection is the user's choice for one submission round.
type Selection struct {
	Categories  []models.Category `json:"categories"`
	PlanLetters []string          `json:"plan_letters,omitempty"` // medigap only
}

// ValidationError reports per-category missing fields that block a round.
type ValidationError struct {
	Missing map[models.Category][]string
}

// Error lists the missing fields per category in stable order.
func (e *ValidationError) Error() string {
	categories := make([]string, 0, len(e.Missing))
	for c := range e.Missing {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		parts = append(parts, fmt.Sprintf("%s: %s", c, strings.Join(e.Missing[models.Category(c)], ", ")))
	}
	return "missing required fields - " + strings.Join(parts, "; ")
}

// Orchestrator owns one session's quote state. Safe for concurrent use.
type Orchestrator struct {
	sessionID string
	st        store.Store
	providers *provider.Registry
	merger    *merge.Merger
	tracker   *progress.Tracker

	mu             sync.Mutex
	quotes         map[models.Category][]models.Quote // medigap entry holds the flat list
	availablePlans map[string]bool
	quotesError    string
	// expectedCategories maps the active round's display names to their
	// categories, for the strict ready predicate.
	expectedCategories map[string]models.Category
	inFlight           map[models.Category]chan struct{}
	cancelRound        context.CancelFunc
}

// New creates an orchestrator for one session. Tracker options are passed
// through so tests can shorten the timing constants.
func New(sessionID string, st store.Store, providers *provider.Registry, trackerOpts ...progress.Option) *Orchestrator {
	return &Orchestrator{
		sessionID:          sessionID,
		st:                 st,
		providers:          providers,
		merger:             merge.New(st),
		tracker:            progress.NewTracker(trackerOpts...),
		quotes:             make(map[models.Category][]models.Quote),
		availablePlans:     make(map[string]bool),
		expectedCategories: make(map[string]models.Category),
		inFlight:           make(map[models.Category]chan struct{}),
	}
}

// SessionID returns the session this orchestrator serves.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Tracker exposes the progress tracker for callback wiring.
func (o *Orchestrator) Tracker() *progress.Tracker {
	return o.tracker
}

// BuildPlan turns a selection into an execution plan: one step per
// category, with medigap carrying its normalized plan letters.
func (o *Orchestrator) BuildPlan(sel Selection) ([]models.ExecutionStep, error) {
	if len(sel.Categories) == 0 {
		return nil, models.ErrNoCategories
	}
	letters := make([]string, 0, len(sel.PlanLetters))
	for _, raw := range sel.PlanLetters {
		letter, err := models.NormalizePlanLetter(raw)
		if err != nil {
			return nil, err
		}
		letters = append(letters, letter)
	}

	steps := make([]models.ExecutionStep, 0, len(sel.Categories))
	for _, category := range sel.Categories {
		if !models.IsValidCategory(category) {
			return nil, fmt.Errorf("%w: %s", models.ErrInvalidCategory, category)
		}
		step := models.ExecutionStep{Category: category}
		if category == models.CategoryMedigap {
			step.Plans = letters
		}
		step.DisplayName = registry.DisplayNames(category, step.Plans)[0]
		steps = append(steps, step)
	}
	return steps, nil
}

// Run executes a submission round: validates every step against the form,
// persists the form for resume, resets progress state, and launches all
// steps concurrently with an all-settled join. One slow or failed category
// never blocks siblings from completing and updating their own state.
func (o *Orchestrator) Run(ctx context.Context, form *models.QuoteFormData, steps []models.ExecutionStep) error {
	missing := make(map[models.Category][]string)
	for _, step := range steps {
		if result := validation.Validate(step.Category, form); !result.IsValid {
			missing[step.Category] = result.Missing
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	// Form persistence is soft-fail: resume is a convenience, not a gate.
	if err := o.st.SaveFormData(o.sessionID, *form); err != nil {
		slog.Warn("Orchestrator.Run: form persistence failed", "error", err, "session_id", o.sessionID)
	}

	roundCtx, cancel := context.WithCancel(ctx)

	expected := make([]string, 0, len(steps))
	o.mu.Lock()
	if o.cancelRound != nil {
		o.cancelRound()
	}
	o.cancelRound = cancel
	o.expectedCategories = make(map[string]models.Category, len(steps))
	o.quotesError = ""
	for _, step := range steps {
		expected = append(expected, step.DisplayName)
		o.expectedCategories[step.DisplayName] = step.Category
	}
	o.mu.Unlock()

	o.tracker.BeginRound(expected)
	slog.Info("Orchestrator.Run: round started", "session_id", o.sessionID, "steps", len(steps))

	var g errgroup.Group
	for _, step := range steps {
		g.Go(func() error {
			// Failures are recorded in session state, not returned:
			// the join is all-settled and never cancels siblings.
			o.runStep(roundCtx, form, step)
			return nil
		})
	}
	_ = g.Wait()

	o.updateReady()
	slog.Info("Orchestrator.Run: round settled", "session_id", o.sessionID)
	return nil
}

// runStep executes one category's fetch-merge-persist-mark sequence. The
// in-flight guard coalesces duplicate triggers for a category into the
// already-running fetch instead of issuing a second network call.
func (o *Orchestrator) runStep(ctx context.Context, form *models.QuoteFormData, step models.ExecutionStep) {
	o.mu.Lock()
	if ch, running := o.inFlight[step.Category]; running {
		o.mu.Unlock()
		slog.Debug("Orchestrator.runStep: coalescing duplicate trigger", "session_id", o.sessionID, "category", step.Category)
		select {
		case <-ch:
		case <-ctx.Done():
		}
		return
	}
	ch := make(chan struct{})
	o.inFlight[step.Category] = ch
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inFlight, step.Category)
		o.mu.Unlock()
		close(ch)
	}()

	o.tracker.StartType(step.DisplayName)
	slog.Debug("Orchestrator.runStep: fetching", "session_id", o.sessionID, "category", step.Category, "plans", step.Plans)

	quotes, err := o.providers.Fetch(ctx, step.Category, form, step.Plans)
	if err != nil {
		o.failStep(step, err)
		return
	}

	o.mu.Lock()
	if step.Category == models.CategoryMedigap {
		flat := o.merger.ApplyMedigap(o.sessionID, o.quotes[models.CategoryMedigap], quotes)
		o.quotes[models.CategoryMedigap] = flat
		o.availablePlans = merge.AvailablePlans(flat)
	} else {
		o.quotes[step.Category] = o.merger.ApplyCategory(o.sessionID, step.Category, quotes)
	}
	o.mu.Unlock()

	o.tracker.CompleteType(step.DisplayName)
	o.updateReady()
	slog.Debug("Orchestrator.runStep: completed", "session_id", o.sessionID, "category", step.Category, "count", len(quotes))
}

// failStep applies the error isolation policy: the category is not marked
// completed (so it stays retryable), loading state is cleared so the UI
// cannot hang, and the global error is set only when no category has any
// quotes yet.
func (o *Orchestrator) failStep(step models.ExecutionStep, err error) {
	message := provider.UserMessage(step.Category, step.Plans, err)

	o.mu.Lock()
	if !o.anyQuotesLocked() {
		o.quotesError = message
	} else {
		slog.Warn("Orchestrator.failStep: category failed with partial results, not surfacing globally",
			"session_id", o.sessionID, "category", step.Category, "error", err)
	}
	o.mu.Unlock()

	o.tracker.FailType(step.DisplayName)
	slog.Warn("Orchestrator.failStep: category fetch failed", "session_id", o.sessionID, "category", step.Category,
		"kind", provider.Classify(err), "error", err)
}

func (o *Orchestrator) anyQuotesLocked() bool {
	for _, quotes := range o.quotes {
		if len(quotes) > 0 {
			return true
		}
	}
	return false
}

// updateReady applies the strict ready predicate: every expected quote type
// must have completed this session's fetch and its category bucket must be
// non-empty. Stale quotes left over from a prior session never satisfy it.
func (o *Orchestrator) updateReady() {
	snap := o.tracker.Snapshot()
	if snap.TotalExpectedQuotes == 0 || len(snap.CompletedQuoteTypes) < snap.TotalExpectedQuotes {
		return
	}

	o.mu.Lock()
	ready := true
	for _, name := range snap.ExpectedQuoteTypes {
		category, ok := o.expectedCategories[name]
		if !ok || len(o.quotes[category]) == 0 {
			ready = false
			break
		}
	}
	o.mu.Unlock()

	if ready {
		o.tracker.MarkReady()
		slog.Info("Orchestrator.updateReady: quotes ready", "session_id", o.sessionID)
	}
}

// Quotes returns the session's current bucket for a category. For medigap,
// pass a plan letter to select one letter bucket from the flat list, or ""
// for the full list.
func (o *Orchestrator) Quotes(category models.Category, planLetter string) []models.Quote {
	o.mu.Lock()
	defer o.mu.Unlock()
	bucket := o.quotes[category]
	if category != models.CategoryMedigap || planLetter == "" {
		out := make([]models.Quote, len(bucket))
		copy(out, bucket)
		return out
	}
	letter := strings.ToUpper(strings.TrimSpace(planLetter))
	var out []models.Quote
	for _, q := range bucket {
		if q.PlanType == letter {
			out = append(out, q)
		}
	}
	return out
}

// AvailablePlans reports per medigap plan letter whether any quote exists.
func (o *Orchestrator) AvailablePlans() map[string]bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]bool, len(o.availablePlans))
	for letter, available := range o.availablePlans {
		out[letter] = available
	}
	return out
}

// Snapshot assembles the full progress view exposed to the API.
func (o *Orchestrator) Snapshot() models.ProgressSnapshot {
	snap := o.tracker.Snapshot()
	o.mu.Lock()
	quotesError := o.quotesError
	o.mu.Unlock()
	return models.ProgressSnapshot{
		Percent:             snap.Percent,
		StepIndex:           o.tracker.StepIndex(),
		CurrentQuoteType:    snap.CurrentQuoteType,
		ExpectedQuoteTypes:  snap.ExpectedQuoteTypes,
		StartedQuoteTypes:   snap.StartedQuoteTypes,
		CompletedQuoteTypes: snap.CompletedQuoteTypes,
		TotalExpectedQuotes: snap.TotalExpectedQuotes,
		QuotesReady:         snap.QuotesReady,
		QuotesError:         quotesError,
	}
}

// Hydrate loads persisted session state (form and buckets) into memory,
// supporting resume after a restart. Read failures soft-fail to empty.
func (o *Orchestrator) Hydrate() *models.QuoteFormData {
	form, err := o.st.GetFormData(o.sessionID)
	if err != nil {
		slog.Warn("Orchestrator.Hydrate: form read failed", "error", err, "session_id", o.sessionID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, category := range models.AllCategories {
		bucket := o.merger.LoadBucket(o.sessionID, registry.StorageKey(category), nil)
		if len(bucket) > 0 {
			o.quotes[category] = bucket
		}
	}
	o.availablePlans = merge.AvailablePlans(o.quotes[models.CategoryMedigap])
	return form
}

// Reset cancels any in-flight round and clears all session state, durable
// and in-memory. Used for full session reset; progress state is never
// rolled back otherwise.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.cancelRound != nil {
		o.cancelRound()
		o.cancelRound = nil
	}
	o.quotes = make(map[models.Category][]models.Quote)
	o.availablePlans = make(map[string]bool)
	o.quotesError = ""
	o.expectedCategories = make(map[string]models.Category)
	o.mu.Unlock()

	o.tracker.Stop()
	if _, err := o.st.DeleteBucketsWithPrefix(store.SessionPrefix(o.sessionID)); err != nil {
		slog.Warn("Orchestrator.Reset: bucket deletion failed", "error", err, "session_id", o.sessionID)
	}
	if err := o.st.DeleteFormData(o.sessionID); err != nil {
		slog.Warn("Orchestrator.Reset: form deletion failed", "error", err, "session_id", o.sessionID)
	}
	slog.Info("Orchestrator.Reset: session cleared", "session_id", o.sessionID)
}
