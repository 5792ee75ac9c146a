package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	defaultDBPath         = "statements.db"
	defaultModel          = "gemini-2.5-flash"
	defaultAPIVersion     = "v1"
	defaultWorkers        = 3
	defaultTimeoutSeconds = 120

	envDBPath         = "STATEMENT_DB_PATH"
	envModel          = "GEMINI_MODEL"
	envAPIVersion     = "GEMINI_API_VERSION"
	envWorkers        = "INGEST_WORKERS"
	envTimeoutSeconds = "EXTRACT_TIMEOUT_SECONDS"
)

// Load reads configuration from a .env file (if present) and environment
// variables, falling back to defaults. The Gemini API key itself is read by
// the genai client from GEMINI_API_KEY and is not part of Config.
func Load(log zerolog.Logger) *Config {
	// A missing .env file is fine; env vars may be set directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Could not load .env file")
	}

	cfg := &Config{
		DBPath:         getEnv(envDBPath, defaultDBPath),
		Model:          getEnv(envModel, defaultModel),
		APIVersion:     getEnv(envAPIVersion, defaultAPIVersion),
		Workers:        getEnvInt(log, envWorkers, defaultWorkers),
		ExtractTimeout: time.Duration(getEnvInt(log, envTimeoutSeconds, defaultTimeoutSeconds)) * time.Second,
	}

	if cfg.Workers < 1 {
		log.Warn().Int("workers", cfg.Workers).Msg("Invalid worker count, using default")
		cfg.Workers = defaultWorkers
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(log zerolog.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", fallback).Msg("Invalid integer env value, using default")
		return fallback
	}
	return n
}
