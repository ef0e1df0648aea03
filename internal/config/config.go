package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultAgendaURL   = "https://www.dotnetconf.net/agenda"
	defaultRefreshCron = "*/15 * * * *"
	defaultCacheTTL    = time.Minute
	defaultTimeout     = 15 * time.Second
	defaultCalName     = ".NET Conf"
	defaultCalDesc     = "Sessions of the .NET Conf virtual event, imported from the official agenda page."
)

// Environment variables that override the YAML file.
const (
	EnvListen    = "CONFCAL_LISTEN"
	EnvAgendaURL = "CONFCAL_AGENDA_URL"
	EnvLogLevel  = "CONFCAL_LOG_LEVEL"
	EnvFetcher   = "CONFCAL_FETCHER"
)

// AgendaConfig describes where and how the agenda page is fetched.
type AgendaConfig struct {
	// URL is the public agenda page.
	URL string `yaml:"url" json:"url"`

	// Fetcher selects the page source: "http" (default) or "chromium".
	Fetcher string `yaml:"fetcher" json:"fetcher"`

	// Timeout bounds a single page fetch.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// CacheDir enables the conditional-request disk cache when set.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Policy is "fail-fast" (default) or "skip" for malformed sessions.
	Policy string `yaml:"policy" json:"policy"`
}

// CalendarConfig holds the static feed metadata and response caching.
type CalendarConfig struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	CacheTTL    time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron schedule that pre-warms the feed cache.
	// Empty disables warming.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Agenda   AgendaConfig   `yaml:"agenda" json:"agenda"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		LogLevel:    "info",
		RefreshCron: defaultRefreshCron,
		Agenda: AgendaConfig{
			URL:     defaultAgendaURL,
			Fetcher: "http",
			Timeout: defaultTimeout,
			Policy:  "fail-fast",
		},
		Calendar: CalendarConfig{
			Name:        defaultCalName,
			Description: defaultCalDesc,
			CacheTTL:    defaultCacheTTL,
		},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly. RefreshCron is left alone: empty means disabled.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Agenda.URL == "" {
		c.Agenda.URL = defaultAgendaURL
	}
	switch strings.ToLower(c.Agenda.Fetcher) {
	case "http", "chromium":
		c.Agenda.Fetcher = strings.ToLower(c.Agenda.Fetcher)
	default:
		c.Agenda.Fetcher = "http"
	}
	if c.Agenda.Timeout <= 0 {
		c.Agenda.Timeout = defaultTimeout
	}
	if c.Agenda.Policy == "" {
		c.Agenda.Policy = "fail-fast"
	}
	if c.Calendar.Name == "" {
		c.Calendar.Name = defaultCalName
	}
	if c.Calendar.CacheTTL < 0 {
		c.Calendar.CacheTTL = 0
	}
}

// ApplyEnv overrides fields from the process environment. A .env file in
// the working directory is loaded first when present; variables already set
// in the environment take precedence over it.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := getEnv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := getEnv(EnvAgendaURL); v != "" {
		c.Agenda.URL = v
	}
	if v := getEnv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getEnv(EnvFetcher); v != "" {
		c.Agenda.Fetcher = v
	}
	c.Normalize()
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".confcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
