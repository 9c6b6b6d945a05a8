package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/withinyouai/claritycore/internal/api"
	"github.com/withinyouai/claritycore/internal/flow"
	"github.com/withinyouai/claritycore/internal/genai"
	"github.com/withinyouai/claritycore/internal/lockfile"
	"github.com/withinyouai/claritycore/internal/store"
	"github.com/withinyouai/claritycore/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ClarityCore state data
	DefaultStateDir = "/var/lib/claritycore"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "claritycore.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// File-based storage needs a single-instance guard on the state directory.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.Acquire(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping ClarityCore with configured modules")
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "session_limit", *flags.sessionLimit)
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("ClarityCore failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ClarityCore exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	OpenAIKey    string
	APIAddr      string
	SessionLimit int
	CatalogPath  string
	GenAIAcks    bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	apiAddr      *string
	sessionLimit *int
	catalogPath  *string
	genaiAcks    *bool
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
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("CLARITYCORE_STATE_DIR"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		SessionLimit: util.ParseIntEnv("FREE_SESSION_LIMIT", flow.DefaultFreeSessionLimit),
		CatalogPath:  os.Getenv("CATALOG_PATH"),
		GenAIAcks:    util.ParseBoolEnv("GENAI_ACKS", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CLARITYCORE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Without a database URL, default to SQLite in the state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"CLARITYCORE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"FREE_SESSION_LIMIT", config.SessionLimit,
		"CATALOG_PATH", config.CatalogPath,
		"GENAI_ACKS", config.GenAIAcks)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for ClarityCore data (overrides $CLARITYCORE_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN, Postgres URL or SQLite file path (overrides $DATABASE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sessionLimit: flag.Int("session-limit", config.SessionLimit, "free-tier discovery session limit (overrides $FREE_SESSION_LIMIT)"),
		catalogPath:  flag.String("catalog", config.CatalogPath, "YAML question catalog override (overrides $CATALOG_PATH)"),
		genaiAcks:    flag.Bool("genai-acks", config.GenAIAcks, "generate acknowledgments with the LLM instead of the static pool (overrides $GENAI_ACKS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"sessionLimit", *flags.sessionLimit,
		"catalogPath", *flags.catalogPath,
		"genaiAcks", *flags.genaiAcks)

	// Follow the state directory when the DSN still points at the default.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.sessionLimit > 0 {
		apiOpts = append(apiOpts, api.WithSessionLimit(*flags.sessionLimit))
	}
	if *flags.catalogPath != "" {
		apiOpts = append(apiOpts, api.WithCatalogPath(*flags.catalogPath))
	}
	if *flags.genaiAcks {
		apiOpts = append(apiOpts, api.WithGenAIAcks(flow.DefaultAckTimeout))
	}
	return apiOpts
}
