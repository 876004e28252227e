package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configVars = []string{
	"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GEMINI_MODEL", "LISTEN_ADDR",
	"FRONTEND_URL", "STORE_BACKEND", "KITCHEN_LENS_DB_PATH", "REDIS_URL",
	"STORAGE_KEY", "MAX_UPLOAD_BYTES", "REQUEST_TIMEOUT", "VISION_CACHE", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configVars {
		t.Setenv(v, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, "", cfg.GeminiModel)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.FrontendURLs)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, "kitchen-lens-analysis", cfg.StorageKey)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.VisionCache)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_GEMINI_API_KEY", "alias-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-flash")
	t.Setenv("FRONTEND_URL", "http://a.test, http://b.test,")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("VISION_CACHE", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "alias-key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.FrontendURLs)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.VisionCache)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad size", "MAX_UPLOAD_BYTES", "ten", "invalid MAX_UPLOAD_BYTES"},
		{"zero size", "MAX_UPLOAD_BYTES", "0", "MAX_UPLOAD_BYTES must be positive"},
		{"bad timeout", "REQUEST_TIMEOUT", "soon", "invalid REQUEST_TIMEOUT"},
		{"bad bool", "VISION_CACHE", "maybe", "invalid VISION_CACHE"},
		{"bad level", "LOG_LEVEL", "loud", "invalid LOG_LEVEL"},
		{"bad backend", "STORE_BACKEND", "etcd", "invalid STORE_BACKEND"},
		{"redis without url", "STORE_BACKEND", "redis", "REDIS_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestCheckRequiredConfig(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, []string{"GEMINI_API_KEY"}, CheckRequiredConfig())

	t.Setenv("GOOGLE_GEMINI_API_KEY", "alias")
	assert.Empty(t, CheckRequiredConfig())

	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "  ")
	assert.Equal(t, []string{"GEMINI_API_KEY"}, CheckRequiredConfig())
}

func TestWriteEnvFileAndLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("AppData", filepath.Join(home, "AppData"))

	const key = "KITCHEN_LENS_TEST_SECRET"
	t.Cleanup(func() { os.Unsetenv(key) })

	path, err := WriteEnvFile(map[string]string{key: `s3cr=t "quoted"`})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, EnvFileName, filepath.Base(path))

	LoadEnvFile()
	assert.Equal(t, `s3cr=t "quoted"`, os.Getenv(key))
}

func TestValidateGeminiKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("key") {
		case "good":
			w.Write([]byte(`{"models":[]}`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"API key not valid. Please pass a valid API key."}}`))
		}
	}))
	defer srv.Close()

	assert.NoError(t, validateGeminiKeyAt(srv.URL, "good"))
	assert.EqualError(t, validateGeminiKeyAt(srv.URL, "bad"), "API key not valid. Please pass a valid API key.")
	assert.EqualError(t, validateGeminiKeyAt(srv.URL, "broken"), "unexpected response (HTTP 500)")
}
