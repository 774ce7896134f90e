// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// DBPath is the SQLite database file location.
	DBPath string

	// SourceDir is the root directory scanned for raw 1-minute files.
	SourceDir string

	// TargetDir is the directory holding converted 1-minute CSV files.
	TargetDir string

	// StateFile is the JSON document tracking pipeline progress.
	// Defaults to a sibling of the database file.
	StateFile string

	// StalenessHours marks a contract as needing update when its newest
	// 1-minute datum is older than this many hours.
	StalenessHours int

	// Session contains the trading-session boundary settings.
	Session SessionConfig
}

// SessionConfig holds the wall-clock boundaries of the futures trading session.
// The defaults encode the Chinese futures market calendar: the day session
// closes at 14:59 and the night session runs from 21:00 across midnight
// until shortly before 03:00. Other markets need different values, so none
// of these are hard-coded at the call sites.
type SessionConfig struct {
	// DayEnd is the minute whose bar closes the trading day.
	DayEnd string

	// NightStart is the first minute of the evening session.
	NightStart string

	// NightEnd is the exclusive upper bound of the post-midnight
	// continuation of the night session.
	NightEnd string

	// NewDay is the first minute that opens a fresh trading day after a
	// night session.
	NewDay string

	// DailyStamp is the wall-clock time stamped on emitted daily bars,
	// one minute after DayEnd.
	DailyStamp string
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	dbPath := getEnv("BARPIPE_DB_PATH", defaultDBPath())

	return &AppConfig{
		DBPath:         dbPath,
		SourceDir:      getEnv("BARPIPE_SOURCE_DIR", ""),
		TargetDir:      getEnv("BARPIPE_TARGET_DIR", ""),
		StateFile:      getEnv("BARPIPE_STATE_FILE", filepath.Join(filepath.Dir(dbPath), "data_update_status.json")),
		StalenessHours: getEnvInt("BARPIPE_STALENESS_HOURS", 24),
		Session: SessionConfig{
			DayEnd:     getEnv("BARPIPE_SESSION_DAY_END", "14:59:00"),
			NightStart: getEnv("BARPIPE_SESSION_NIGHT_START", "21:00:00"),
			NightEnd:   getEnv("BARPIPE_SESSION_NIGHT_END", "03:00:00"),
			NewDay:     getEnv("BARPIPE_SESSION_NEW_DAY", "03:01:00"),
			DailyStamp: getEnv("BARPIPE_SESSION_DAILY_STAMP", "15:00:00"),
		},
	}
}

// defaultDBPath looks for a .barpipe directory in the working directory
// first, then falls back to the home directory.
func defaultDBPath() string {
	cwd, err := os.Getwd()
	if err == nil {
		dir := filepath.Join(cwd, ".barpipe")
		if _, statErr := os.Stat(dir); statErr == nil {
			return filepath.Join(dir, "database.db")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".barpipe", "database.db")
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
