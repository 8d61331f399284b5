package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/medicarekit/quotehub/internal/api"
	"github.com/medicarekit/quotehub/internal/scheduler"
	"github.com/medicarekit/quotehub/internal/store"
	"github.com/medicarekit/quotehub/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for QuoteHub state data
	DefaultStateDir = "/var/lib/quotehub"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "quotehub.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping QuoteHub with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "",
		"api_addr", *flags.apiAddr, "provider_url_set", *flags.providerURL != "")
	if err := api.Run(storeOpts, apiOpts); err != nil {
		slog.Error("QuoteHub failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("QuoteHub exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	APIAddr       string
	ProviderURL   string
	BucketTTL     time.Duration
	SweepSchedule string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	apiAddr       *string
	providerURL   *string
	bucketTTL     *time.Duration
	sweepSchedule *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("QUOTEHUB_STATE_DIR"),
		APIAddr:       os.Getenv("API_ADDR"),
		ProviderURL:   os.Getenv("QUOTE_PROVIDER_URL"),
		BucketTTL:     util.ParseDurationEnv("QUOTE_BUCKET_TTL", scheduler.DefaultBucketTTL),
		SweepSchedule: os.Getenv("SWEEP_SCHEDULE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No QUOTEHUB_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"QUOTEHUB_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"QUOTE_PROVIDER_URL_SET", config.ProviderURL != "",
		"QUOTE_BUCKET_TTL", config.BucketTTL,
		"SWEEP_SCHEDULE", config.SweepSchedule)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for QuoteHub data (overrides $QUOTEHUB_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the quote bucket store (overrides $DATABASE_URL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		providerURL:   flag.String("provider-url", config.ProviderURL, "quote gateway base URL (overrides $QUOTE_PROVIDER_URL)"),
		bucketTTL:     flag.Duration("bucket-ttl", config.BucketTTL, "persisted quote bucket TTL (overrides $QUOTE_BUCKET_TTL)"),
		sweepSchedule: flag.String("sweep-schedule", config.SweepSchedule, "cron schedule for stale bucket sweeps (overrides $SWEEP_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"providerURL_set", *flags.providerURL != "",
		"bucketTTL", *flags.bucketTTL,
		"sweepSchedule", *flags.sweepSchedule)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.providerURL != "" {
		apiOpts = append(apiOpts, api.WithProviderBaseURL(*flags.providerURL))
	}
	apiOpts = append(apiOpts, api.WithDBDriver(store.DetectDSNType(*flags.dbDSN)))
	if *flags.bucketTTL > 0 {
		apiOpts = append(apiOpts, api.WithBucketTTL(*flags.bucketTTL))
	}
	if *flags.sweepSchedule != "" {
		apiOpts = append(apiOpts, api.WithSweepSchedule(*flags.sweepSchedule))
	}
	return apiOpts
}
