// Package progress implements the cosmetic timer fallback mode.
package progress

import (
	"log/slog"
	"math"
	"time"
)

// StartTimerMode runs the fallback presentation mode: with neither quote
// counts nor external progress supplied, the tracker advances through the
// fixed step list on fixed per-step durations, ticking progress forward
// every TimerTick. Purely cosmetic; its only contract is that the
// completion callback eventually fires. Returns immediately; the advance
// runs in a background goroutine until done or Stop.
func (t *Tracker) StartTimerMode() {
	t.mu.Lock()
	if t.timerOn {
		t.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	t.timerStop = stop
	t.timerOn = true
	t.timerPct = 0
	t.timerStep = 0
	t.completeFired = false
	stepCount := len(t.steps)
	t.mu.Unlock()

	if stepCount == 0 {
		t.fireComplete()
		return
	}

	go t.runTimer(stop, stepCount)
}

func (t *Tracker) runTimer(stop chan struct{}, stepCount int) {
	ticker := time.NewTicker(TimerTick)
	defer ticker.Stop()

	progressPerStep := 100.0 / float64(stepCount)
	for step := 0; step < stepCount; step++ {
		duration := TimerStepDuration
		if step == stepCount-1 {
			duration = TimerFinalStepDuration
		}
		perTick := progressPerStep * float64(TimerTick) / float64(duration)
		elapsed := time.Duration(0)
		for elapsed < duration {
			select {
			case <-stop:
				return
			case <-ticker.C:
				elapsed += TimerTick
				t.mu.Lock()
				t.timerPct = math.Min(t.timerPct+perTick, 100)
				t.mu.Unlock()
			}
		}
		t.mu.Lock()
		t.timerStep = step + 1
		if t.timerStep > stepCount-1 {
			t.timerStep = stepCount - 1
		}
		t.timerPct = progressPerStep * float64(step+1)
		fn := t.onStepComplete
		t.mu.Unlock()
		if fn != nil {
			fn(step)
		}
	}

	t.mu.Lock()
	t.timerPct = 100
	t.timerOn = false
	t.mu.Unlock()
	slog.Debug("Tracker.runTimer: cosmetic progression finished")
	t.fireComplete()
}
