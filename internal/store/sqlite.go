// Package store provides storage backends for QuoteHub.
//
// This file implements the SQLite-backed store for quote buckets and form data.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/medicarekit/quotehub/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists quote buckets in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetBucket returns the quotes stored under key, or nil if absent.
func (s *SQLiteStore) GetBucket(key string) ([]models.Quote, error) {
	var quotesJSON string
	err := s.db.QueryRow(`SELECT quotes_json FROM quote_buckets WHERE key = ?`, key).Scan(&quotesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetBucket query failed", "error", err, "key", key)
		return nil, fmt.Errorf("failed to query bucket %s: %w", key, err)
	}
	quotes, err := decodeQuotes(quotesJSON)
	if err != nil {
		slog.Error("SQLiteStore GetBucket decode failed", "error", err, "key", key)
		return nil, err
	}
	slog.Debug("SQLiteStore GetBucket succeeded", "key", key, "count", len(quotes))
	return quotes, nil
}

// SaveBucket replaces the bucket under key with the given quotes.
func (s *SQLiteStore) SaveBucket(key string, quotes []models.Quote) error {
	quotesJSON, err := encodeQuotes(quotes)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO quote_buckets (key, quotes_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET quotes_json = excluded.quotes_json, updated_at = excluded.updated_at`,
		key, quotesJSON, time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveBucket failed", "error", err, "key", key)
		return fmt.Errorf("failed to save bucket %s: %w", key, err)
	}
	slog.Debug("SQLiteStore SaveBucket succeeded", "key", key, "count", len(quotes))
	return nil
}

// DeleteBucket removes the bucket under key.
func (s *SQLiteStore) DeleteBucket(key string) error {
	_, err := s.db.Exec(`DELETE FROM quote_buckets WHERE key = ?`, key)
	if err != nil {
		slog.Error("SQLiteStore DeleteBucket failed", "error", err, "key", key)
		return fmt.Errorf("failed to delete bucket %s: %w", key, err)
	}
	return nil
}

// DeleteBucketsWithPrefix removes every bucket whose key starts with prefix.
func (s *SQLiteStore) DeleteBucketsWithPrefix(prefix string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM quote_buckets WHERE key LIKE ? || '%'`, prefix)
	if err != nil {
		slog.Error("SQLiteStore DeleteBucketsWithPrefix failed", "error", err, "prefix", prefix)
		return 0, fmt.Errorf("failed to delete buckets with prefix %s: %w", prefix, err)
	}
	deleted, _ := res.RowsAffected()
	slog.Debug("SQLiteStore DeleteBucketsWithPrefix succeeded", "prefix", prefix, "deleted", deleted)
	return deleted, nil
}

// PruneBucketsBefore removes buckets last written before cutoff.
func (s *SQLiteStore) PruneBucketsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM quote_buckets WHERE updated_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore PruneBucketsBefore failed", "error", err, "cutoff", cutoff)
		return 0, fmt.Errorf("failed to prune buckets: %w", err)
	}
	pruned, _ := res.RowsAffected()
	slog.Debug("SQLiteStore PruneBucketsBefore succeeded", "cutoff", cutoff, "pruned", pruned)
	return pruned, nil
}

// SaveFormData persists the session's submitted form for resume.
func (s *SQLiteStore) SaveFormData(sessionID string, form models.QuoteFormData) error {
	formJSON, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to marshal form data: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO form_data (session_id, form_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET form_json = excluded.form_json, updated_at = excluded.updated_at`,
		sessionID, string(formJSON), time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveFormData failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to save form data for %s: %w", sessionID, err)
	}
	return nil
}

// GetFormData returns the session's saved form, or nil if absent.
func (s *SQLiteStore) GetFormData(sessionID string) (*models.QuoteFormData, error) {
	var formJSON string
	err := s.db.QueryRow(`SELECT form_json FROM form_data WHERE session_id = ?`, sessionID).Scan(&formJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFormData query failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to query form data for %s: %w", sessionID, err)
	}
	var form models.QuoteFormData
	if err := json.Unmarshal([]byte(formJSON), &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form data for %s: %w", sessionID, err)
	}
	return &form, nil
}

// DeleteFormData removes the session's saved form.
func (s *SQLiteStore) DeleteFormData(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM form_data WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete form data for %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
