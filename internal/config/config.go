package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Board client
	APIBaseURL   string
	APITimeout   time.Duration
	PageSize     int
	ServerSearch bool
	UpdateMethod string
	ThemeFile    string

	// Development backend
	DBHost           string
	DBPort           string
	DBUser           string
	DBPassword       string
	DBName           string
	ServerPort       string
	ResponseEnvelope string

	Debug bool
}

// Load reads the environment, after merging a .env file from the working
// directory when there is one.
func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Debug("⚠️  No .env file found, using system environment variables")
	}

	return &Config{
		APIBaseURL:   getEnv("KANBAN_API_BASE_URL", "http://localhost:4000"),
		APITimeout:   getEnvDuration("KANBAN_API_TIMEOUT", 10*time.Second),
		PageSize:     getEnvInt("KANBAN_PAGE_SIZE", 10),
		ServerSearch: getEnvBool("KANBAN_SERVER_SEARCH", false),
		UpdateMethod: strings.ToUpper(getEnv("KANBAN_UPDATE_METHOD", "PATCH")),
		ThemeFile:    getEnv("KANBAN_THEME_FILE", ""),

		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5431"),
		DBUser:           getEnv("DB_USER", "kanban_user"),
		DBPassword:       getEnv("DB_PASSWORD", "kanban_pass"),
		DBName:           getEnv("DB_NAME", "kanban_db"),
		ServerPort:       getEnv("SERVER_PORT", "4000"),
		ResponseEnvelope: strings.ToLower(getEnv("RESPONSE_ENVELOPE", "array")),

		Debug: getEnvBool("DEBUG", false),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		logrus.WithField("key", key).Warnf("⚠️  Invalid value %q, using %d", raw, defaultVal)
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		logrus.WithField("key", key).Warnf("⚠️  Invalid value %q, using %t", raw, defaultVal)
		return defaultVal
	}
	return b
}

// getEnvDuration accepts Go durations ("5s") or a plain number of
// milliseconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logrus.WithField("key", key).Warnf("⚠️  Invalid value %q, using %s", raw, defaultVal)
		return defaultVal
	}
	return d
}
