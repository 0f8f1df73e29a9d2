package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite, postgres, mysql or api
	DSN    string `yaml:"dsn"`
}

type APIConfig struct {
	BaseURL   string `yaml:"baseUrl"`
	APIKey    string `yaml:"apiKey"`
	ChunkDays int    `yaml:"chunkDays"` // maximum days per request
	Timeout   string `yaml:"timeout"`
}

type HistoryConfig struct {
	SubjectID       string `yaml:"subjectId"`
	Timezone        string `yaml:"timezone"`
	PageSizeDays    int    `yaml:"pageSizeDays"`
	MaxLookbackDays int    `yaml:"maxLookbackDays"`
	UndoWindow      string `yaml:"undoWindow"`
	PreloadEnabled  *bool  `yaml:"preloadEnabled"`
}

type ServerConfig struct {
	ListenAddr     string `yaml:"listenAddr"`
	MetricsEnabled bool   `yaml:"metricsEnabled"`
}

type Config struct {
	Store   StoreConfig   `yaml:"store"`
	API     APIConfig     `yaml:"api"`
	History HistoryConfig `yaml:"history"`
	Server  ServerConfig  `yaml:"server"`
	Debug   bool          `yaml:"debug"`
}

// Load reads filename, applies NESTLING_* environment overrides and
// defaults, and validates the result. An empty filename skips the file.
func Load(filename string) (*Config, error) {
	c := &Config{}
	if filename != "" {
		buf, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, c); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	}
	c.applyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Store.Driver = getenvDefault("NESTLING_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getenvDefault("NESTLING_STORE_DSN", c.Store.DSN)
	c.API.BaseURL = getenvDefault("NESTLING_API_BASE_URL", c.API.BaseURL)
	c.API.APIKey = getenvDefault("NESTLING_API_KEY", c.API.APIKey)
	c.History.SubjectID = getenvDefault("NESTLING_SUBJECT_ID", c.History.SubjectID)
	c.History.Timezone = getenvDefault("NESTLING_TIMEZONE", c.History.Timezone)
	c.History.UndoWindow = getenvDefault("NESTLING_UNDO_WINDOW", c.History.UndoWindow)
	if v := os.Getenv("NESTLING_PRELOAD_ENABLED"); v != "" {
		enabled := getenvBool("NESTLING_PRELOAD_ENABLED", true)
		c.History.PreloadEnabled = &enabled
	}
	c.Server.ListenAddr = getenvDefault("NESTLING_LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.MetricsEnabled = getenvBool("NESTLING_METRICS_ENABLED", c.Server.MetricsEnabled)
	c.Debug = getenvBool("NESTLING_DEBUG", c.Debug)
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.API.ChunkDays <= 0 {
		c.API.ChunkDays = 30
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "10s"
	}
	if c.History.Timezone == "" {
		c.History.Timezone = "Local"
	}
	if c.History.PageSizeDays <= 0 {
		c.History.PageSizeDays = 7
	}
	if c.History.MaxLookbackDays <= 0 {
		c.History.MaxLookbackDays = 365
	}
	if c.History.UndoWindow == "" {
		c.History.UndoWindow = "5s"
	}
	if c.History.PreloadEnabled == nil {
		enabled := true
		c.History.PreloadEnabled = &enabled
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres", "mysql":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	case "api":
		if c.API.BaseURL == "" {
			errs = append(errs, errors.New("api.baseUrl is required for driver \"api\""))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres, mysql, api", c.Store.Driver))
	}
	if c.History.SubjectID == "" {
		errs = append(errs, errors.New("history.subjectId is required"))
	}
	if _, err := time.LoadLocation(c.History.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("history.timezone: %w", err))
	}
	if d, err := time.ParseDuration(c.History.UndoWindow); err != nil {
		errs = append(errs, fmt.Errorf("history.undoWindow: %w", err))
	} else if d <= 0 {
		errs = append(errs, errors.New("history.undoWindow must be positive"))
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("api.timeout: %w", err))
	}
	if c.History.MaxLookbackDays < c.History.PageSizeDays {
		errs = append(errs, errors.New("history.maxLookbackDays must not be smaller than history.pageSizeDays"))
	}
	return errors.Join(errs...)
}

// Location returns the subject's time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.History.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) UndoWindow() time.Duration {
	d, _ := time.ParseDuration(c.History.UndoWindow)
	return d
}

func (c *Config) APITimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

func (c *Config) PreloadEnabled() bool {
	return c.History.PreloadEnabled != nil && *c.History.PreloadEnabled
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
