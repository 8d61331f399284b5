// Package merge implements the result merge/partition layer.
//
// On each category's resolution the freshly fetched quotes are merged into
// per-plan-type buckets with last-write-wins replace semantics per partition
// key: medigap results are partitioned by plan letter and replace only the
// letters present in the fetch; every other category's fetch replaces its
// whole bucket. Persistence is soft-fail: a storage error is logged and the
// in-memory result remains authoritative.
package merge

import (
	"log/slog"
	"sort"

	"github.com/medicarekit/quotehub/internal/models"
	"github.com/medicarekit/quotehub/internal/registry"
	"github.com/medicarekit/quotehub/internal/store"
)

// Merger applies fetch results to persisted session state.
type Merger struct {
	st store.Store
}

// New creates a Merger over the given store.
func New(st store.Store) *Merger {
	return &Merger{st: st}
}

// PartitionByPlan splits medigap quotes into per-plan-letter groups.
// Quotes without a plan letter are dropped; they cannot be bucketed.
func PartitionByPlan(quotes []models.Quote) map[string][]models.Quote {
	partitioned := make(map[string][]models.Quote)
	for _, q := range quotes {
		if q.PlanType == "" {
			continue
		}
		partitioned[q.PlanType] = append(partitioned[q.PlanType], q)
	}
	return partitioned
}

// MergeFlat recomputes the legacy flat medigap list after a per-letter
// replace: quotes whose letter was just refetched are dropped from the
// existing list, then the new quotes are appended. The result carries at
// most one bucket's worth of quotes per letter.
func MergeFlat(existing []models.Quote, replaced map[string][]models.Quote) []models.Quote {
	merged := make([]models.Quote, 0, len(existing))
	for _, q := range existing {
		if _, refetched := replaced[q.PlanType]; !refetched {
			merged = append(merged, q)
		}
	}
	letters := make([]string, 0, len(replaced))
	for letter := range replaced {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	for _, letter := range letters {
		merged = append(merged, replaced[letter]...)
	}
	return merged
}

// AvailablePlans reports, per plan letter, whether any quote exists in the
// flat list. Drives checkbox enabled-state only; never a correctness input.
func AvailablePlans(flat []models.Quote) map[string]bool {
	available := make(map[string]bool)
	for _, q := range flat {
		if q.PlanType != "" {
			available[q.PlanType] = true
		}
	}
	return available
}

// ApplyMedigap merges a medigap fetch result into the session's letter
// buckets and recomputes the flat list. Each letter bucket present in the
// fetch is fully replaced and persisted under its own key; letters absent
// from the fetch are untouched. Returns the updated flat list.
func (m *Merger) ApplyMedigap(sessionID string, existingFlat []models.Quote, incoming []models.Quote) []models.Quote {
	replaced := PartitionByPlan(incoming)
	for letter, bucket := range replaced {
		key := store.SessionKey(sessionID, registry.PlanStorageKey(letter))
		if err := m.st.SaveBucket(key, bucket); err != nil {
			slog.Warn("Merger.ApplyMedigap: bucket persistence failed, continuing with in-memory state",
				"error", err, "session_id", sessionID, "plan", letter)
		}
	}

	flat := MergeFlat(existingFlat, replaced)
	flatKey := store.SessionKey(sessionID, registry.StorageKey(models.CategoryMedigap))
	if err := m.st.SaveBucket(flatKey, flat); err != nil {
		slog.Warn("Merger.ApplyMedigap: flat list persistence failed, continuing with in-memory state",
			"error", err, "session_id", sessionID)
	}
	slog.Debug("Merger.ApplyMedigap: merged", "session_id", sessionID, "letters", len(replaced), "flat_count", len(flat))
	return flat
}

// ApplyCategory replaces a non-medigap category's whole bucket with the
// fetch result and persists it. Returns the stored list.
func (m *Merger) ApplyCategory(sessionID string, category models.Category, incoming []models.Quote) []models.Quote {
	key := store.SessionKey(sessionID, registry.StorageKey(category))
	if err := m.st.SaveBucket(key, incoming); err != nil {
		slog.Warn("Merger.ApplyCategory: bucket persistence failed, continuing with in-memory state",
			"error", err, "session_id", sessionID, "category", category)
	}
	slog.Debug("Merger.ApplyCategory: replaced bucket", "session_id", sessionID, "category", category, "count", len(incoming))
	return incoming
}

// LoadBucket reads a session's persisted bucket for resume. Read failures
// fall back to the provided default, matching the soft-fail contract.
func (m *Merger) LoadBucket(sessionID, bucketKey string, fallback []models.Quote) []models.Quote {
	quotes, err := m.st.GetBucket(store.SessionKey(sessionID, bucketKey))
	if err != nil {
		slog.Warn("Merger.LoadBucket: read failed, using fallback", "error", err, "session_id", sessionID, "key", bucketKey)
		return fallback
	}
	if quotes == nil {
		return fallback
	}
	return quotes
}
