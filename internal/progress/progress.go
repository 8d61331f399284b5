// Package progress derives a single displayable progress signal for a quote
// loading session.
//
// Three mutually exclusive input modes feed the model, in priority order:
// real-time quote counts (whenever a round expects quotes), caller-supplied
// external progress, and a purely cosmetic fixed-duration timer. Progress is
// monotonic within a round, capped below 100 until every expected quote type
// has completed, and a hard failsafe guarantees the completion callback
// always fires so the loading UI can never hang indefinitely.
package progress

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Timing constants for the progress model.
const (
	// InProgressCap is the ceiling progress may report while any expected
	// quote type is still outstanding.
	InProgressCap = 95.0
	// InProgressBonusFactor sizes the small head-start added while a round
	// is in flight: (1/totalExpected) * InProgressBonusFactor.
	InProgressBonusFactor = 25.0
	// DefaultCompletionDelay is how long after reaching 100 the completion
	// callback fires, leaving room for a final visual transition.
	DefaultCompletionDelay = 500 * time.Millisecond
	// DefaultFailsafeDelay bounds the loading UI: completion is forced this
	// long after a round begins regardless of progress state.
	DefaultFailsafeDelay = 30 * time.Second
	// TimerStepDuration is the per-step duration in cosmetic timer mode.
	TimerStepDuration = 2000 * time.Millisecond
	// TimerFinalStepDuration is the shorter duration of the final step.
	TimerFinalStepDuration = 1500 * time.Millisecond
	// TimerTick is the update interval in cosmetic timer mode.
	TimerTick = 50 * time.Millisecond
)

// DefaultSteps is the step list shown while quotes load.
var DefaultSteps = []string{
	"Analyzing your information",
	"Searching Supplement Plans",
	"Checking Medicare Advantage Plans",
	"Comparing carrier rates",
	"Finalizing your quotes",
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSteps overrides the loading step list.
func WithSteps(steps []string) Option {
	return func(t *Tracker) { t.steps = steps }
}

// WithOnComplete sets the callback fired once per round when loading finishes.
func WithOnComplete(fn func()) Option {
	return func(t *Tracker) { t.onComplete = fn }
}

// WithOnStepComplete sets the callback fired when the cosmetic timer mode
// advances past a step.
func WithOnStepComplete(fn func(stepIndex int)) Option {
	return func(t *Tracker) { t.onStepComplete = fn }
}

// WithCompletionDelay overrides the delay between reaching 100 and firing
// the completion callback. Used by tests.
func WithCompletionDelay(d time.Duration) Option {
	return func(t *Tracker) { t.completionDelay = d }
}

// WithFailsafeDelay overrides the hard failsafe bound. Used by tests.
func WithFailsafeDelay(d time.Duration) Option {
	return func(t *Tracker) { t.failsafeDelay = d }
}

// Tracker owns the progress state of one session's loading rounds. All
// mutation goes through its methods; the single mutex makes the
// completed-subset-of-expected invariant enforceable in one place.
type Tracker struct {
	mu sync.Mutex

	steps           []string
	completionDelay time.Duration
	failsafeDelay   time.Duration
	onComplete      func()
	onStepComplete  func(stepIndex int)

	expected  map[string]struct{}
	started   map[string]struct{}
	completed map[string]struct{}
	failed    map[string]struct{}
	// current is a best-effort UI signal. Concurrent fetches overwrite it
	// last-writer-wins; it is never consulted for completion decisions.
	current       string
	totalExpected int
	ready         bool

	external    float64
	externalSet bool

	completeFired bool
	completeTimer *time.Timer
	failsafeTimer *time.Timer

	timerStop chan struct{}
	timerPct  float64
	timerStep int
	timerOn   bool
}

// NewTracker creates a Tracker with default steps and timings.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		steps:           DefaultSteps,
		completionDelay: DefaultCompletionDelay,
		failsafeDelay:   DefaultFailsafeDelay,
		expected:        make(map[string]struct{}),
		started:         make(map[string]struct{}),
		completed:       make(map[string]struct{}),
		failed:          make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BeginRound resets progress state for a new submission and arms the
// failsafe. expectedTypes are the display names the round will wait on;
// totalExpected normally equals len(expectedTypes).
func (t *Tracker) BeginRound(expectedTypes []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimersLocked()
	t.expected = make(map[string]struct{}, len(expectedTypes))
	for _, name := range expectedTypes {
		t.expected[name] = struct{}{}
	}
	t.started = make(map[string]struct{})
	t.completed = make(map[string]struct{})
	t.failed = make(map[string]struct{})
	t.current = ""
	t.totalExpected = len(t.expected)
	t.ready = false
	t.external = 0
	t.externalSet = false
	t.completeFired = false

	t.failsafeTimer = time.AfterFunc(t.failsafeDelay, func() {
		slog.Warn("Tracker: failsafe fired, forcing loading completion")
		t.fireComplete()
	})
	slog.Debug("Tracker.BeginRound: round started", "expected", expectedTypes, "total", t.totalExpected)
}

// StartType records that a quote type's fetch is in flight and points the
// current-type signal at it.
func (t *Tracker) StartType(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started[name] = struct{}{}
	t.current = name
}

// CompleteType records a quote type's successful completion. Names outside
// the expected set are ignored, preserving completed ⊆ expected. When the
// last expected type completes, the completion callback is scheduled.
func (t *Tracker) CompleteType(name string) {
	t.mu.Lock()
	if _, ok := t.expected[name]; !ok {
		slog.Debug("Tracker.CompleteType: ignoring unexpected type", "name", name)
		t.mu.Unlock()
		return
	}
	t.completed[name] = struct{}{}
	delete(t.failed, name)
	if t.current == name {
		t.current = ""
	}
	settled := t.roundSettledLocked()
	t.mu.Unlock()

	if settled {
		t.scheduleCompletion()
	}
}

// FailType records a quote type's failure. Failed types are deliberately
// not marked completed so the retry affordance stays available, but they
// count toward round settlement so siblings are not held hostage.
func (t *Tracker) FailType(name string) {
	t.mu.Lock()
	if _, ok := t.expected[name]; ok {
		if _, done := t.completed[name]; !done {
			t.failed[name] = struct{}{}
		}
	}
	if t.current == name {
		t.current = ""
	}
	settled := t.roundSettledLocked()
	t.mu.Unlock()

	if settled {
		t.scheduleCompletion()
	}
}

// MarkReady flips the quotes-ready flag. The orchestrator calls this once
// every expected type has completed this session with a non-empty bucket.
func (t *Tracker) MarkReady() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = true
}

// SetExternalProgress supplies caller-driven progress, used only while no
// quote counts are available. The value is clamped to [0,100].
func (t *Tracker) SetExternalProgress(p float64) {
	t.mu.Lock()
	clamped := math.Max(0, math.Min(100, p))
	t.external = clamped
	t.externalSet = true
	settled := t.totalExpected == 0 && clamped >= 100
	t.mu.Unlock()

	if settled {
		t.scheduleCompletion()
	}
}

// roundSettledLocked reports whether every expected type has reached a
// terminal state (completed or failed) in a round that expected anything.
func (t *Tracker) roundSettledLocked() bool {
	if t.totalExpected == 0 {
		return false
	}
	return len(t.completed)+len(t.failed) >= t.totalExpected
}

// Percent computes the displayable progress value for the active mode.
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentLocked()
}

func (t *Tracker) percentLocked() float64 {
	if t.totalExpected > 0 {
		completedCount := len(t.completed)
		if completedCount >= t.totalExpected {
			return 100
		}
		pct := (float64(completedCount) / float64(t.totalExpected)) * 100
		pct += (1.0 / float64(t.totalExpected)) * InProgressBonusFactor
		return math.Min(pct, InProgressCap)
	}
	if t.externalSet {
		return t.external
	}
	return t.timerPct
}

// StepIndex resolves the current step for the active mode. In quote-count
// mode the current quote type is matched against the step list by
// case-insensitive substring, falling back to the completed count.
func (t *Tracker) StepIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.totalExpected > 0 {
		if t.current != "" {
			needle := strings.ToLower(t.current)
			for i, step := range t.steps {
				if strings.Contains(strings.ToLower(step), needle) || strings.Contains(needle, strings.ToLower(step)) {
					return i
				}
			}
		}
		return clampIndex(len(t.completed), len(t.steps))
	}
	if t.externalSet {
		idx := int(math.Floor(t.external / 100 * float64(len(t.steps))))
		return clampIndex(idx, len(t.steps))
	}
	return clampIndex(t.timerStep, len(t.steps))
}

func clampIndex(idx, count int) int {
	if count == 0 {
		return 0
	}
	if idx >= count {
		return count - 1
	}
	if idx < 0 {
		return 0
	}
	return idx
}

// Snapshot returns the exported progress view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Percent:             t.percentLocked(),
		CurrentQuoteType:    t.current,
		ExpectedQuoteTypes:  sortedKeys(t.expected),
		StartedQuoteTypes:   sortedKeys(t.started),
		CompletedQuoteTypes: sortedKeys(t.completed),
		TotalExpectedQuotes: t.totalExpected,
		QuotesReady:         t.ready,
	}
}

// Snapshot is the tracker's exported state.
type Snapshot struct {
	Percent             float64
	CurrentQuoteType    string
	ExpectedQuoteTypes  []string
	StartedQuoteTypes   []string
	CompletedQuoteTypes []string
	TotalExpectedQuotes int
	QuotesReady         bool
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scheduleCompletion arms the post-100 completion delay once per round.
func (t *Tracker) scheduleCompletion() {
	t.mu.Lock()
	if t.completeFired || t.completeTimer != nil {
		t.mu.Unlock()
		return
	}
	t.completeTimer = time.AfterFunc(t.completionDelay, t.fireComplete)
	t.mu.Unlock()
}

// fireComplete invokes the completion callback exactly once per round and
// disarms the failsafe.
func (t *Tracker) fireComplete() {
	t.mu.Lock()
	if t.completeFired {
		t.mu.Unlock()
		return
	}
	t.completeFired = true
	if t.failsafeTimer != nil {
		t.failsafeTimer.Stop()
	}
	fn := t.onComplete
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Stop cancels all pending timers. Called on session teardown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimersLocked()
}

func (t *Tracker) stopTimersLocked() {
	if t.failsafeTimer != nil {
		t.failsafeTimer.Stop()
		t.failsafeTimer = nil
	}
	if t.completeTimer != nil {
		t.completeTimer.Stop()
		t.completeTimer = nil
	}
	if t.timerOn && t.timerStop != nil {
		close(t.timerStop)
		t.timerStop = nil
		t.timerOn = false
	}
}
