// Package scheduler provides scheduled maintenance for QuoteHub.
//
// Persisted quote buckets go stale quickly (carrier rates change and a
// previous session's leftovers must never satisfy a new round's ready
// checks), so a cron job periodically prunes buckets older than a TTL.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/medicarekit/quotehub/internal/store"
)

// DefaultBucketTTL is how long persisted quote buckets are kept.
const DefaultBucketTTL = 24 * time.Hour

// DefaultSweepSchedule runs the prune hourly.
const DefaultSweepSchedule = "0 * * * *"

// Sweeper prunes stale quote buckets on a cron schedule.
type Sweeper struct {
	cron *cron.Cron
	st   store.Store
	ttl  time.Duration
}

// NewSweeper creates and starts a sweeper over the given store.
// It returns an error if the cron expression is invalid.
func NewSweeper(st store.Store, ttl time.Duration, schedule string) (*Sweeper, error) {
	if ttl <= 0 {
		ttl = DefaultBucketTTL
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	s := &Sweeper{cron: c, st: st, ttl: ttl}
	if _, err := c.AddFunc(schedule, s.Sweep); err != nil {
		return nil, err
	}
	c.Start()
	slog.Info("Sweeper started", "schedule", schedule, "ttl", ttl)
	return s, nil
}

// Sweep prunes buckets last written before now minus the TTL.
func (s *Sweeper) Sweep() {
	cutoff := time.Now().Add(-s.ttl)
	pruned, err := s.st.PruneBucketsBefore(cutoff)
	if err != nil {
		slog.Error("Sweeper.Sweep failed", "error", err, "cutoff", cutoff)
		return
	}
	if pruned > 0 {
		slog.Info("Sweeper.Sweep pruned stale buckets", "pruned", pruned, "cutoff", cutoff)
	}
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}
