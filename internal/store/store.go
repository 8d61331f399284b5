// Package store provides storage backends for QuoteHub.
//
// Quote buckets are persisted as independent keys, one per category or
// medigap plan letter, with last-write-wins replace semantics per key.
// Backends: SQLite for single-node deployments, PostgreSQL for shared ones,
// and an in-memory store for tests.
package store

import (
	"sync"
	"time"

	"github.com/medicarekit/quotehub/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string (file path for SQLite).
	DSN string
}

// Option configures store creation.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// Store is the persistence contract the orchestrator and merge layer rely
// on. Writes to different keys are independent; there is no cross-key
// transaction, which is acceptable because every key's write is itself a
// full replace.
type Store interface {
	// GetBucket returns the quotes stored under key, or nil if absent.
	GetBucket(key string) ([]models.Quote, error)
	// SaveBucket replaces the bucket under key with the given quotes.
	SaveBucket(key string, quotes []models.Quote) error
	// DeleteBucket removes the bucket under key. Missing keys are not an error.
	DeleteBucket(key string) error
	// DeleteBucketsWithPrefix removes every bucket whose key starts with
	// prefix and returns how many were deleted.
	DeleteBucketsWithPrefix(prefix string) (int64, error)
	// PruneBucketsBefore removes buckets last written before cutoff.
	PruneBucketsBefore(cutoff time.Time) (int64, error)
	// SaveFormData persists the session's submitted form for resume.
	SaveFormData(sessionID string, form models.QuoteFormData) error
	// GetFormData returns the session's saved form, or nil if absent.
	GetFormData(sessionID string) (*models.QuoteFormData, error)
	// DeleteFormData removes the session's saved form.
	DeleteFormData(sessionID string) error
	// Close releases backend resources.
	Close() error
}

type bucketEntry struct {
	quotes    []models.Quote
	updatedAt time.Time
}

// InMemoryStore is a mutex-guarded map-backed store used in tests and as a
// degraded fallback when no DSN is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]bucketEntry
	forms   map[string]models.QuoteFormData
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		buckets: make(map[string]bucketEntry),
		forms:   make(map[string]models.QuoteFormData),
	}
}

// GetBucket returns a copy of the quotes stored under key.
func (s *InMemoryStore) GetBucket(key string) ([]models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.buckets[key]
	if !ok {
		return nil, nil
	}
	quotes := make([]models.Quote, len(entry.quotes))
	copy(quotes, entry.quotes)
	return quotes, nil
}

// SaveBucket replaces the bucket under key.
func (s *InMemoryStore) SaveBucket(key string, quotes []models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]models.Quote, len(quotes))
	copy(stored, quotes)
	s.buckets[key] = bucketEntry{quotes: stored, updatedAt: time.Now()}
	return nil
}

// DeleteBucket removes the bucket under key.
func (s *InMemoryStore) DeleteBucket(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// DeleteBucketsWithPrefix removes every bucket whose key starts with prefix.
func (s *InMemoryStore) DeleteBucketsWithPrefix(prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key := range s.buckets {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.buckets, key)
			deleted++
		}
	}
	return deleted, nil
}

// PruneBucketsBefore removes buckets last written before cutoff.
func (s *InMemoryStore) PruneBucketsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned int64
	for key, entry := range s.buckets {
		if entry.updatedAt.Before(cutoff) {
			delete(s.buckets, key)
			pruned++
		}
	}
	return pruned, nil
}

// SaveFormData persists the session's submitted form.
func (s *InMemoryStore) SaveFormData(sessionID string, form models.QuoteFormData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[sessionID] = form
	return nil
}

// GetFormData returns the session's saved form, or nil if absent.
func (s *InMemoryStore) GetFormData(sessionID string) (*models.QuoteFormData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[sessionID]
	if !ok {
		return nil, nil
	}
	return &form, nil
}

// DeleteFormData removes the session's saved form.
func (s *InMemoryStore) DeleteFormData(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, sessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
