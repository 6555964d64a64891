// Package config reads MovieBrain's settings from the environment.
//
// A .env file in the working directory is loaded first when present; values
// already set in the real environment win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the program.
type Config struct {
	DBPath     string
	ReportPath string
	LogLevel   slog.Level

	OMDbAPIKey  string // empty disables online lookups
	OMDbBaseURL string
	OMDbTimeout time.Duration
}

// Load reads the optional env files (".env" when none are given) and
// builds a Config from the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// A missing file is fine; anything else is a broken file.
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Config{
		DBPath:      GetEnv("MOVIEBRAIN_DB_PATH", "data/moviebrain.db"),
		ReportPath:  GetEnv("MOVIEBRAIN_REPORT_PATH", "data/index.html"),
		OMDbAPIKey:  GetEnv("OMDB_API_KEY", ""),
		OMDbBaseURL: GetEnv("OMDB_BASE_URL", "https://www.omdbapi.com/"),
	}

	level, err := parseLevel(GetEnv("MOVIEBRAIN_LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	timeout, err := time.ParseDuration(GetEnv("OMDB_TIMEOUT", "5s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid OMDB_TIMEOUT %q", os.Getenv("OMDB_TIMEOUT"))
	}
	cfg.OMDbTimeout = timeout

	return cfg, nil
}

// GetEnv returns the value of key, or defaultValue when it is unset or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid MOVIEBRAIN_LOG_LEVEL %q", s)
	}
	return level, nil
}
