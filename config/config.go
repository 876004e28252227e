package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	AppName     = "kitchen-lens"
	EnvFileName = "config.env"
)

const (
	DefaultListenAddr     = ":8080"
	DefaultFrontendURL    = "http://localhost:3000"
	DefaultDBPath         = "kitchen-lens.db"
	DefaultMaxUploadBytes = 10 << 20
	DefaultRequestTimeout = 60 * time.Second
)

// Config holds the service settings read from the environment.
type Config struct {
	GeminiAPIKey   string
	GeminiModel    string
	ListenAddr     string
	FrontendURLs   []string
	StoreBackend   string
	DBPath         string
	RedisURL       string
	StorageKey     string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	VisionCache    bool
	LogLevel       zerolog.Level
}

// Dir returns the application's config directory path.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configBase, AppName), nil
}

// FilePath returns the full path to the config file.
func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory and from .env in the working directory. Variables already
// set in the process win. Errors are ignored since the files may not exist.
func LoadEnvFile() {
	if configPath, err := FilePath(); err == nil {
		_ = godotenv.Load(configPath)
	}
	_ = godotenv.Load(".env")
}

// requiredEnvVars lists the environment variables that must be set for the
// server to run.
var requiredEnvVars = []string{"GEMINI_API_KEY"}

// CheckRequiredConfig returns the names of any missing required variables.
func CheckRequiredConfig() []string {
	var missing []string
	for _, v := range requiredEnvVars {
		if lookup(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// lookup reads a variable, falling back to its alias.
func lookup(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if key == "GEMINI_API_KEY" {
		return strings.TrimSpace(os.Getenv("GOOGLE_GEMINI_API_KEY"))
	}
	return ""
}

// Load builds a Config from the environment. Malformed values are errors,
// missing ones take their defaults.
func Load() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey: lookup("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", ""),
		ListenAddr:   getEnv("LISTEN_ADDR", DefaultListenAddr),
		FrontendURLs: splitList(getEnv("FRONTEND_URL", DefaultFrontendURL)),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		DBPath:       getEnv("KITCHEN_LENS_DB_PATH", DefaultDBPath),
		RedisURL:     getEnv("REDIS_URL", ""),
		StorageKey:   getEnv("STORAGE_KEY", "kitchen-lens-analysis"),
	}

	var err error
	if cfg.MaxUploadBytes, err = getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.VisionCache, err = getEnvBool("VISION_CACHE", true); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	switch cfg.StoreBackend {
	case "sqlite", "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want sqlite, redis or memory", cfg.StoreBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
