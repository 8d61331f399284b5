// Package store provides storage backends for QuoteHub.
//
// This file implements the PostgreSQL-backed store for quote buckets and form data.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"

	"github.com/medicarekit/quotehub/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists quote buckets in a shared PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetBucket returns the quotes stored under key, or nil if absent.
func (s *PostgresStore) GetBucket(key string) ([]models.Quote, error) {
	var quotesJSON string
	err := s.db.QueryRow(`SELECT quotes_json FROM quote_buckets WHERE key = $1`, key).Scan(&quotesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetBucket query failed", "error", err, "key", key)
		return nil, fmt.Errorf("failed to query bucket %s: %w", key, err)
	}
	quotes, err := decodeQuotes(quotesJSON)
	if err != nil {
		slog.Error("PostgresStore GetBucket decode failed", "error", err, "key", key)
		return nil, err
	}
	return quotes, nil
}

// SaveBucket replaces the bucket under key with the given quotes.
func (s *PostgresStore) SaveBucket(key string, quotes []models.Quote) error {
	quotesJSON, err := encodeQuotes(quotes)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO quote_buckets (key, quotes_json, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET quotes_json = EXCLUDED.quotes_json, updated_at = EXCLUDED.updated_at`,
		key, quotesJSON, time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveBucket failed", "error", err, "key", key)
		return fmt.Errorf("failed to save bucket %s: %w", key, err)
	}
	return nil
}

// DeleteBucket removes the bucket under key.
func (s *PostgresStore) DeleteBucket(key string) error {
	_, err := s.db.Exec(`DELETE FROM quote_buckets WHERE key = $1`, key)
	if err != nil {
		slog.Error("PostgresStore DeleteBucket failed", "error", err, "key", key)
		return fmt.Errorf("failed to delete bucket %s: %w", key, err)
	}
	return nil
}

// DeleteBucketsWithPrefix removes every bucket whose key starts with prefix.
func (s *PostgresStore) DeleteBucketsWithPrefix(prefix string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM quote_buckets WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		slog.Error("PostgresStore DeleteBucketsWithPrefix failed", "error", err, "prefix", prefix)
		return 0, fmt.Errorf("failed to delete buckets with prefix %s: %w", prefix, err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// PruneBucketsBefore removes buckets last written before cutoff.
func (s *PostgresStore) PruneBucketsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM quote_buckets WHERE updated_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore PruneBucketsBefore failed", "error", err, "cutoff", cutoff)
		return 0, fmt.Errorf("failed to prune buckets: %w", err)
	}
	pruned, _ := res.RowsAffected()
	return pruned, nil
}

// SaveFormData persists the session's submitted form for resume.
func (s *PostgresStore) SaveFormData(sessionID string, form models.QuoteFormData) error {
	formJSON, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to marshal form data: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO form_data (session_id, form_json, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET form_json = EXCLUDED.form_json, updated_at = EXCLUDED.updated_at`,
		sessionID, string(formJSON), time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveFormData failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to save form data for %s: %w", sessionID, err)
	}
	return nil
}

// GetFormData returns the session's saved form, or nil if absent.
func (s *PostgresStore) GetFormData(sessionID string) (*models.QuoteFormData, error) {
	var formJSON string
	err := s.db.QueryRow(`SELECT form_json FROM form_data WHERE session_id = $1`, sessionID).Scan(&formJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFormData query failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to query form data for %s: %w", sessionID, err)
	}
	var form models.QuoteFormData
	if err := json.Unmarshal([]byte(formJSON), &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form data for %s: %w", sessionID, err)
	}
	return &form, nil
}

// DeleteFormData removes the session's saved form.
func (s *PostgresStore) DeleteFormData(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM form_data WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete form data for %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
