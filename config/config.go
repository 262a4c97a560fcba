// Package config resolves the settings of a run from the config file, a
// .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pevans/deskstats/search"
)

// Environment variables read by Resolve.
const (
	EnvAPIKey     = "DESKSTATS_API_KEY"
	EnvBeginDate  = "DESKSTATS_BEGIN_DATE"
	EnvEndDate    = "DESKSTATS_END_DATE"
	EnvMaxPages   = "DESKSTATS_MAX_PAGES"
	EnvReportsDSN = "DESKSTATS_REPORTS_DSN"
	EnvLogLevel   = "DESKSTATS_LOG_LEVEL"
	EnvAddr       = "DESKSTATS_ADDR"
)

// Validation errors.
var (
	ErrMissingAPIKey   = errors.New("an API key is required (set " + EnvAPIKey + ")")
	ErrInvalidDate     = errors.New("dates must be formatted YYYYMMDD")
	ErrDateOrder       = errors.New("begin_date must not be after end_date")
	ErrInvalidPageSize = errors.New("page_size must be at least 1")
	ErrInvalidMaxPages = errors.New("max_pages must not be negative")
	ErrInvalidRetries  = errors.New("max_retries must not be negative")
	ErrInvalidLogLevel = errors.New("log level must be one of: debug, info, warn, error")
)

// Config is the resolved configuration of the program.
type Config struct {
	Search     *search.Config
	ReportsDSN string
	LogLevel   string
	Addr       string
}

// Load reads an optional .env file, the config file, and the environment,
// then resolves them.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env file is not an error
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	file, err := LoadConfigFile()
	if err != nil {
		return nil, err
	}

	return Resolve(file, os.Getenv)
}

// Resolve merges defaults, the file config (may be nil), and the environment
// looked up through getenv. It does not require an API key; callers that
// fetch should call RequireAPIKey.
func Resolve(file *FileConfig, getenv func(string) string) (*Config, error) {
	if file == nil {
		file = &FileConfig{}
	}

	sc := search.DefaultConfig()
	fs := file.Search

	if fs.BaseURL != "" {
		sc.BaseURL = fs.BaseURL
	}
	sc.APIKey = firstNonEmpty(getenv(EnvAPIKey), fs.APIKey)
	sc.BeginDate = firstNonEmpty(getenv(EnvBeginDate), fs.BeginDate, sc.BeginDate)
	sc.EndDate = firstNonEmpty(getenv(EnvEndDate), fs.EndDate, sc.EndDate)

	if fs.PageSize != 0 {
		sc.PageSize = fs.PageSize
	}
	sc.MaxPages = fs.MaxPages
	if v := getenv(EnvMaxPages); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxPages, err)
		}
		sc.MaxPages = n
	}
	if fs.MaxRetries != nil {
		sc.MaxRetries = *fs.MaxRetries
	}

	var err error
	if sc.Interval, err = parseDuration("interval", fs.Interval, sc.Interval); err != nil {
		return nil, err
	}
	if sc.RetryDelay, err = parseDuration("retry_delay", fs.RetryDelay, sc.RetryDelay); err != nil {
		return nil, err
	}
	if sc.Timeout, err = parseDuration("timeout", fs.Timeout, sc.Timeout); err != nil {
		return nil, err
	}

	cfg := &Config{
		Search:     sc,
		ReportsDSN: firstNonEmpty(getenv(EnvReportsDSN), file.Storage.Reports.DSN, "reports.db"),
		LogLevel:   strings.ToLower(firstNonEmpty(getenv(EnvLogLevel), file.Logging.Level, "info")),
		Addr:       firstNonEmpty(getenv(EnvAddr), file.Server.Addr, ":1337"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	sc := c.Search
	begin, err := time.Parse("20060102", sc.BeginDate)
	if err != nil {
		return fmt.Errorf("begin_date %q: %w", sc.BeginDate, ErrInvalidDate)
	}
	end, err := time.Parse("20060102", sc.EndDate)
	if err != nil {
		return fmt.Errorf("end_date %q: %w", sc.EndDate, ErrInvalidDate)
	}
	if begin.After(end) {
		return ErrDateOrder
	}
	if sc.PageSize < 1 {
		return ErrInvalidPageSize
	}
	if sc.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if sc.MaxRetries < 0 {
		return ErrInvalidRetries
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// RequireAPIKey returns ErrMissingAPIKey when no key was configured.
func (c *Config) RequireAPIKey() error {
	if c.Search.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// parseDuration parses a configured duration, keeping def when unset.
func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a valid duration (e.g., 6s, 100ms)", name)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", name)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
