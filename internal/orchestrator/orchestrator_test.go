package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medicarekit/quotehub/internal/models"
	"github.com/medicarekit/quotehub/internal/progress"
	"github.com/medicarekit/quotehub/internal/provider"
	"github.com/medicarekit/quotehub/internal/registry"
	"github.com/medicarekit/quotehub/internal/store"
	"github.com/medicarekit/quotehub/internal/testutil"
)

func fastTrackerOpts() []progress.Option {
	return []progress.Option{
		progress.WithCompletionDelay(5 * time.Millisecond),
		progress.WithFailsafeDelay(5 * time.Second),
	}
}

func newTestOrchestrator(t *testing.T, providers ...provider.Provider) (*Orchestrator, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	reg := provider.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	return New("sess-test", st, reg, fastTrackerOpts()...), st
}

func TestBuildPlan(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	steps, err := orch.BuildPlan(Selection{
		Categories:  []models.Category{models.CategoryMedigap, models.CategoryDental},
		PlanLetters: []string{"g"},
	})
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].DisplayName != "Plan G" {
		t.Errorf("single-letter medigap display = %q, want Plan G", steps[0].DisplayName)
	}
	if steps[0].Plans[0] != "G" {
		t.Errorf("plan letter not normalized: %v", steps[0].Plans)
	}
	if steps[1].DisplayName != registry.DisplayDental {
		t.Errorf("dental display = %q", steps[1].DisplayName)
	}
}

func TestBuildPlanRejectsBadInput(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	if _, err := orch.BuildPlan(Selection{}); !errors.Is(err, models.ErrNoCategories) {
		t.Errorf("empty selection: got %v", err)
	}
	if _, err := orch.BuildPlan(Selection{Categories: []models.Category{"pet-insurance"}}); !errors.Is(err, models.ErrInvalidCategory) {
		t.Errorf("bad category: got %v", err)
	}
}

func TestRunRejectsInvalidForm(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	steps, _ := orch.BuildPlan(Selection{Categories: []models.Category{models.CategoryMedigap}, PlanLetters: []string{"G"}})

	form := &models.QuoteFormData{ZipCode: "75001"} // missing age, gender, tobacco
	err := orch.Run(context.Background(), form, steps)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	missing := verr.Missing[models.CategoryMedigap]
	for _, field := range []string{"age", "gender", "tobaccoUse"} {
		found := false
		for _, m := range missing {
			if m == field {
				found = true
			}
		}
		if !found {
			t.Errorf("missing list %v lacks %s", missing, field)
		}
	}
}

func TestRunMergesAndReadies(t *testing.T) {
	medigap := &testutil.FakeProvider{
		ProviderCategory: models.CategoryMedigap,
		Quotes:           testutil.MedigapQuotes("G", "N"),
	}
	dental := &testutil.FakeProvider{
		ProviderCategory: models.CategoryDental,
		Quotes:           []models.Quote{testutil.MakeQuote(models.CategoryDental, "", "Delta", 4200)},
	}
	orch, st := newTestOrchestrator(t, medigap, dental)

	form := testutil.ValidMedigapForm()
	form.CoveredMembers = "1"
	steps, _ := orch.BuildPlan(Selection{
		Categories:  []models.Category{models.CategoryMedigap, models.CategoryDental},
		PlanLetters: []string{"G", "N"},
	})
	if err := orch.Run(context.Background(), form, steps); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap := orch.Snapshot()
	if !snap.QuotesReady {
		t.Errorf("quotes not ready after successful round: %+v", snap)
	}
	if snap.Percent != 100 {
		t.Errorf("progress = %f, want 100", snap.Percent)
	}
	if snap.QuotesError != "" {
		t.Errorf("unexpected quotes error: %s", snap.QuotesError)
	}
	if got := orch.Quotes(models.CategoryMedigap, "G"); len(got) != 1 {
		t.Errorf("expected 1 G quote, got %d", len(got))
	}
	if got := orch.Quotes(models.CategoryDental, ""); len(got) != 1 {
		t.Errorf("expected 1 dental quote, got %d", len(got))
	}
	available := orch.AvailablePlans()
	if !available["G"] || !available["N"] || available["F"] {
		t.Errorf("available plans = %v", available)
	}

	// Form persisted for resume.
	saved, err := st.GetFormData("sess-test")
	if err != nil || saved == nil || saved.ZipCode != form.ZipCode {
		t.Errorf("form not persisted: %v %v", saved, err)
	}
}

// A failed category is isolated: siblings complete, the failed category is
// not marked completed (stays retryable), and no global error is surfaced
// when some quotes loaded.
func TestFailureIsolation(t *testing.T) {
	dental := &testutil.FakeProvider{
		ProviderCategory: models.CategoryDental,
		Quotes:           []models.Quote{testutil.MakeQuote(models.CategoryDental, "", "Delta", 4200)},
	}
	hospital := &testutil.FakeProvider{
		ProviderCategory: models.CategoryHospitalIndemnity,
		Err:              errors.New("functions/internal"),
		Delay:            50 * time.Millisecond, // fail after the sibling succeeds
	}
	orch, _ := newTestOrchestrator(t, dental, hospital)

	form := testutil.ValidMedigapForm()
	form.CoveredMembers = "1"
	steps, _ := orch.BuildPlan(Selection{
		Categories: []models.Category{models.CategoryDental, models.CategoryHospitalIndemnity},
	})
	if err := orch.Run(context.Background(), form, steps); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap := orch.Snapshot()
	if snap.QuotesReady {
		t.Error("ready despite a failed category")
	}
	if snap.QuotesError != "" {
		t.Errorf("global error set despite partial success: %s", snap.QuotesError)
	}
	completed := strings.Join(snap.CompletedQuoteTypes, ",")
	if strings.Contains(completed, registry.DisplayHospitalIndemnity) {
		t.Errorf("failed category marked completed: %s", completed)
	}
	if !strings.Contains(completed, registry.DisplayDental) {
		t.Errorf("successful sibling missing from completed: %s", completed)
	}
}

// With no successful category, the provider failure surfaces globally with
// category-specific timeout wording.
func TestTimeoutErrorSurfaced(t *testing.T) {
	medigap := &testutil.FakeProvider{
		ProviderCategory: models.CategoryMedigap,
		Err:              errors.New("functions/deadline-exceeded"),
	}
	orch, _ := newTestOrchestrator(t, medigap)

	steps, _ := orch.BuildPlan(Selection{
		Categories:  []models.Category{models.CategoryMedigap},
		PlanLetters: []string{"G"},
	})
	if err := orch.Run(context.Background(), testutil.ValidMedigapForm(), steps); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap := orch.Snapshot()
	if snap.QuotesError == "" {
		t.Fatal("expected a global quotes error")
	}
	if !strings.Contains(snap.QuotesError, "timed out") {
		t.Errorf("error %q does not mention the timeout", snap.QuotesError)
	}
	if !strings.Contains(snap.QuotesError, "Plan G") {
		t.Errorf("error %q does not name the category", snap.QuotesError)
	}
	if snap.QuotesReady {
		t.Error("ready despite total failure")
	}
}

// Stale quotes left in storage from a prior session never satisfy the ready
// predicate: readiness requires this session's fetch to complete.
func TestStaleBucketsDoNotSatisfyReady(t *testing.T) {
	st := store.NewInMemoryStore()
	staleKey := store.SessionKey("sess-test", registry.StorageKey(models.CategoryMedigap))
	if err := st.SaveBucket(staleKey, testutil.MedigapQuotes("G")); err != nil {
		t.Fatal(err)
	}

	reg := provider.NewRegistry()
	reg.Register(&testutil.FakeProvider{
		ProviderCategory: models.CategoryMedigap,
		Err:              errors.New("timeout"),
	})
	orch := New("sess-test", st, reg, fastTrackerOpts()...)
	orch.Hydrate()

	steps, _ := orch.BuildPlan(Selection{
		Categories:  []models.Category{models.CategoryMedigap},
		PlanLetters: []string{"G"},
	})
	if err := orch.Run(context.Background(), testutil.ValidMedigapForm(), steps); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if orch.Snapshot().QuotesReady {
		t.Error("stale bucket satisfied the ready predicate")
	}
}

// Duplicate triggers for a category coalesce into the in-flight fetch
// instead of issuing a second provider call.
func TestInFlightDeduplication(t *testing.T) {
	advantage := &testutil.FakeProvider{
		ProviderCategory: models.CategoryAdvantage,
		Quotes:           []models.Quote{testutil.MakeQuote(models.CategoryAdvantage, "", "Humana", 0)},
		Delay:            30 * time.Millisecond,
	}
	orch, _ := newTestOrchestrator(t, advantage)

	form := &models.QuoteFormData{ZipCode: "90210"}
	steps, _ := orch.BuildPlan(Selection{Categories: []models.Category{models.CategoryAdvantage}})

	// The same step twice in one round: the second fan-out waits on the first.
	doubled := append(steps, steps...)
	if err := orch.Run(context.Background(), form, doubled); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := advantage.FetchCount(); n != 1 {
		t.Errorf("expected 1 provider call, got %d", n)
	}
	if !orch.Snapshot().QuotesReady {
		t.Error("round with coalesced duplicate never became ready")
	}
}

func TestConcurrentSnapshotAccess(t *testing.T) {
	advantage := &testutil.FakeProvider{
		ProviderCategory: models.CategoryAdvantage,
		Quotes:           []models.Quote{testutil.MakeQuote(models.CategoryAdvantage, "", "Humana", 0)},
		Delay:            10 * time.Millisecond,
	}
	orch, _ := newTestOrchestrator(t, advantage)
	form := &models.QuoteFormData{ZipCode: "90210"}
	steps, _ := orch.BuildPlan(Selection{Categories: []models.Category{models.CategoryAdvantage}})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := orch.Run(context.Background(), form, steps); err != nil {
			t.Errorf("Run failed: %v", err)
		}
	}()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		orch.Snapshot()
		orch.Quotes(models.CategoryAdvantage, "")
	}
	wg.Wait()
}

func TestResetClearsEverything(t *testing.T) {
	dental := &testutil.FakeProvider{
		ProviderCategory: models.CategoryDental,
		Quotes:           []models.Quote{testutil.MakeQuote(models.CategoryDental, "", "Delta", 4200)},
	}
	orch, st := newTestOrchestrator(t, dental)

	form := testutil.ValidMedigapForm()
	form.CoveredMembers = "1"
	steps, _ := orch.BuildPlan(Selection{Categories: []models.Category{models.CategoryDental}})
	if err := orch.Run(context.Background(), form, steps); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	orch.Reset()
	if got := orch.Quotes(models.CategoryDental, ""); len(got) != 0 {
		t.Errorf("quotes survived reset: %v", got)
	}
	bucket, _ := st.GetBucket(store.SessionKey("sess-test", registry.StorageKey(models.CategoryDental)))
	if len(bucket) != 0 {
		t.Errorf("persisted bucket survived reset: %v", bucket)
	}
	saved, _ := st.GetFormData("sess-test")
	if saved != nil {
		t.Error("form data survived reset")
	}
}

func TestHydrateRestoresBuckets(t *testing.T) {
	st := store.NewInMemoryStore()
	key := store.SessionKey("sess-test", registry.StorageKey(models.CategoryMedigap))
	if err := st.SaveBucket(key, testutil.MedigapQuotes("G", "N")); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveFormData("sess-test", *testutil.ValidMedigapForm()); err != nil {
		t.Fatal(err)
	}

	orch := New("sess-test", st, provider.NewRegistry(), fastTrackerOpts()...)
	form := orch.Hydrate()
	if form == nil || form.ZipCode != "75001" {
		t.Errorf("hydrated form = %v", form)
	}
	if got := orch.Quotes(models.CategoryMedigap, ""); len(got) != 2 {
		t.Errorf("hydrated quotes = %d, want 2", len(got))
	}
	if !orch.AvailablePlans()["G"] {
		t.Error("available plans not derived on hydrate")
	}
}
