package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: build a getenv func from a map
func envFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

// TestResolve_Defaults verifies defaults reproduce the first week of 2019
func TestResolve_Defaults(t *testing.T) {
	cfg, err := Resolve(nil, envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "20190101", cfg.Search.BeginDate)
	assert.Equal(t, "20190107", cfg.Search.EndDate)
	assert.Equal(t, 10, cfg.Search.PageSize)
	assert.Equal(t, 6*time.Second, cfg.Search.Interval)
	assert.Equal(t, 3, cfg.Search.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Search.RetryDelay)
	assert.Equal(t, 0, cfg.Search.MaxPages)
	assert.Equal(t, "reports.db", cfg.ReportsDSN)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":1337", cfg.Addr)
	assert.ErrorIs(t, cfg.RequireAPIKey(), ErrMissingAPIKey)
}

// TestResolve_FileValues verifies the file overrides defaults
func TestResolve_FileValues(t *testing.T) {
	retries := 0
	file := &FileConfig{}
	file.Search.APIKey = "file-key"
	file.Search.Interval = "12s"
	file.Search.RetryDelay = "250ms"
	file.Search.MaxRetries = &retries
	file.Search.MaxPages = 7
	file.Storage.Reports.DSN = "/var/lib/deskstats.db"
	file.Logging.Level = "DEBUG"

	cfg, err := Resolve(file, envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Search.APIKey)
	assert.Equal(t, 12*time.Second, cfg.Search.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.RetryDelay)
	assert.Equal(t, 0, cfg.Search.MaxRetries, "explicit zero retries is kept")
	assert.Equal(t, 7, cfg.Search.MaxPages)
	assert.Equal(t, "/var/lib/deskstats.db", cfg.ReportsDSN)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NoError(t, cfg.RequireAPIKey())
}

// TestResolve_EnvOverridesFile verifies the environment wins
func TestResolve_EnvOverridesFile(t *testing.T) {
	file := &FileConfig{}
	file.Search.APIKey = "file-key"
	file.Search.BeginDate = "20200101"

	cfg, err := Resolve(file, envFrom(map[string]string{
		EnvAPIKey:     "env-key",
		EnvBeginDate:  "20190105",
		EnvMaxPages:   "3",
		EnvReportsDSN: "env.db",
		EnvAddr:       ":8080",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Search.APIKey)
	assert.Equal(t, "20190105", cfg.Search.BeginDate)
	assert.Equal(t, 3, cfg.Search.MaxPages)
	assert.Equal(t, "env.db", cfg.ReportsDSN)
	assert.Equal(t, ":8080", cfg.Addr)
}

// TestResolve_Invalid verifies validation errors
func TestResolve_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		file   func(f *FileConfig)
		env    map[string]string
		target error
		msg    string
	}{
		{name: "bad begin date", env: map[string]string{EnvBeginDate: "2019-01-01"}, target: ErrInvalidDate},
		{name: "bad end date", file: func(f *FileConfig) { f.Search.EndDate = "tomorrow" }, target: ErrInvalidDate},
		{name: "dates reversed", env: map[string]string{EnvBeginDate: "20190110"}, target: ErrDateOrder},
		{name: "negative page size", file: func(f *FileConfig) { f.Search.PageSize = -1 }, target: ErrInvalidPageSize},
		{name: "negative max pages", file: func(f *FileConfig) { f.Search.MaxPages = -2 }, target: ErrInvalidMaxPages},
		{name: "bad log level", env: map[string]string{EnvLogLevel: "loud"}, target: ErrInvalidLogLevel},
		{name: "bad interval", file: func(f *FileConfig) { f.Search.Interval = "soon" }, msg: "invalid interval"},
		{name: "negative timeout", file: func(f *FileConfig) { f.Search.Timeout = "-1s" }, msg: "invalid timeout"},
		{name: "bad max pages env", env: map[string]string{EnvMaxPages: "many"}, msg: EnvMaxPages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := &FileConfig{}
			if tt.file != nil {
				tt.file(file)
			}

			cfg, err := Resolve(file, envFrom(tt.env))
			assert.Nil(t, cfg)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

// TestLoad_EnvFile verifies a .env file feeds the environment
func TestLoad_EnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	// godotenv never overrides variables that are already set
	for _, key := range []string{EnvAPIKey, EnvBeginDate, EnvEndDate, EnvMaxPages, EnvReportsDSN, EnvLogLevel, EnvAddr} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	envPath := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(EnvAPIKey+"=dotenv-key\n"+EnvMaxPages+"=2\n"), 0o600))

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Search.APIKey)
	assert.Equal(t, 2, cfg.Search.MaxPages)
}

// TestLoad_MissingEnvFile verifies a missing .env file is not an error
func TestLoad_MissingEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	_, err := Load(filepath.Join(tmpDir, "does-not-exist.env"))
	assert.NoError(t, err)
}
