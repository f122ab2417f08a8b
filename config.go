package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Browser      BrowserConfig      `yaml:"browser"`
	WhatsApp     WhatsAppConfig     `yaml:"whatsapp"`
	Harvest      HarvestConfig      `yaml:"harvest"`
	Storage      StorageConfig      `yaml:"storage"`
	Files        FilesConfig        `yaml:"files"`
	Retry        RetryConfig        `yaml:"retry"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	Logging      LoggingConfig      `yaml:"logging"`
	Selectors    Selectors          `yaml:"selectors"`
}

type BrowserConfig struct {
	Headless         bool   `yaml:"headless"`
	UserDataDir      string `yaml:"user_data_dir"`
	ChromePath       string `yaml:"chrome_path"`
	QRTimeoutSeconds int    `yaml:"qr_timeout_seconds"`
	PageLoadTimeout  int    `yaml:"page_load_timeout"`
	WindowWidth      int    `yaml:"window_width"`
	WindowHeight     int    `yaml:"window_height"`
}

type WhatsAppConfig struct {
	URL         string `yaml:"url"`
	Language    string `yaml:"language"`
	WaitSeconds int    `yaml:"wait_seconds"`
}

type HarvestConfig struct {
	MessagesFile            string `yaml:"messages_file"`
	DefaultMonths           int    `yaml:"default_months"`
	MaxScrollAttempts       int    `yaml:"max_scroll_attempts"`
	ScrollPauseMillis       int    `yaml:"scroll_pause_ms"`
	MaxNoNewMessages        int    `yaml:"max_no_new_messages"`
	SyncPausedWaitSeconds   int    `yaml:"sync_paused_wait_seconds"`
	SyncPausedMaxRetries    int    `yaml:"sync_paused_max_retries"`
	SyncProgressWaitSeconds int    `yaml:"sync_progress_wait_seconds"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

type FilesConfig struct {
	CSVPath          string `yaml:"csv_path"`
	TemplatePath     string `yaml:"template_path"`
	CompletedCSVPath string `yaml:"completed_csv_path"`
	ImagePath        string `yaml:"image_path"`
}

type RetryConfig struct {
	MaxRetries          int     `yaml:"max_retries"`
	InitialDelaySeconds int     `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int     `yaml:"max_delay_seconds"`
	BackoffMultiplier   float64 `yaml:"backoff_multiplier"`
}

type RateLimitingConfig struct {
	MessagesPerSecond int  `yaml:"messages_per_second"`
	Enabled           bool `yaml:"enabled"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	config := &Config{}
	// only the absolute path resolution can fail; the relative default still works
	_ = config.applyDefaults()
	return config
}

const defaultUserDataDir = "./chrome/userdata"

// LoadConfig reads the YAML file at configPath. When required is false a
// missing file is not an error and the defaults are returned instead.
func LoadConfig(configPath string, required bool) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() error {
	if c.Browser.UserDataDir == "" {
		c.Browser.UserDataDir = defaultUserDataDir
	}

	if c.Browser.ChromePath == "" {
		c.Browser.ChromePath = findChromePath()
	}
	if c.Browser.QRTimeoutSeconds == 0 {
		c.Browser.QRTimeoutSeconds = 600
	}
	if c.Browser.PageLoadTimeout == 0 {
		c.Browser.PageLoadTimeout = 30
	}
	if c.Browser.WindowWidth == 0 {
		c.Browser.WindowWidth = 1280
	}
	if c.Browser.WindowHeight == 0 {
		c.Browser.WindowHeight = 900
	}

	if c.WhatsApp.URL == "" {
		c.WhatsApp.URL = "https://web.whatsapp.com/"
	}
	if c.WhatsApp.Language == "" {
		c.WhatsApp.Language = "italian"
	}
	if c.WhatsApp.WaitSeconds == 0 {
		c.WhatsApp.WaitSeconds = 30
	}

	h := &c.Harvest
	if h.MessagesFile == "" {
		h.MessagesFile = "messages.json"
	}
	if h.DefaultMonths == 0 {
		h.DefaultMonths = 1
	}
	if h.MaxScrollAttempts == 0 {
		h.MaxScrollAttempts = 10
	}
	if h.ScrollPauseMillis == 0 {
		h.ScrollPauseMillis = 2000
	}
	if h.MaxNoNewMessages == 0 {
		h.MaxNoNewMessages = 5
	}
	if h.SyncPausedWaitSeconds == 0 {
		h.SyncPausedWaitSeconds = 60
	}
	if h.SyncPausedMaxRetries == 0 {
		h.SyncPausedMaxRetries = 5
	}
	if h.SyncProgressWaitSeconds == 0 {
		h.SyncProgressWaitSeconds = 10
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "json"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "messages.db"
	}

	if c.Files.CSVPath == "" {
		c.Files.CSVPath = "contacts.csv"
	}
	if c.Files.TemplatePath == "" {
		c.Files.TemplatePath = "message.txt"
	}
	if c.Files.CompletedCSVPath == "" {
		c.Files.CompletedCSVPath = "completed.csv"
	}

	if c.Retry.BackoffMultiplier == 0 {
		c.Retry.BackoffMultiplier = 2
	}
	if c.Retry.InitialDelaySeconds == 0 {
		c.Retry.InitialDelaySeconds = 5
	}
	if c.Retry.MaxDelaySeconds == 0 {
		c.Retry.MaxDelaySeconds = 60
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	c.Selectors = c.Selectors.withDefaults()

	// Chrome refuses relative profile paths in some setups
	absPath, err := filepath.Abs(c.Browser.UserDataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve user data directory path: %w", err)
	}
	c.Browser.UserDataDir = absPath
	return nil
}

// Validate reports settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q (want json or sqlite)", c.Storage.Backend)
	}
	if _, err := LookupLanguage(c.WhatsApp.Language); err != nil {
		return err
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	h := c.Harvest
	if h.MaxScrollAttempts < 0 || h.MaxNoNewMessages < 0 || h.SyncPausedMaxRetries < 0 {
		return fmt.Errorf("harvest scroll limits must be positive")
	}
	if h.DefaultMonths < 0 {
		return fmt.Errorf("harvest.default_months must be positive, got %d", h.DefaultMonths)
	}
	if h.ScrollPauseMillis < 0 || h.SyncPausedWaitSeconds < 0 || h.SyncProgressWaitSeconds < 0 {
		return fmt.Errorf("harvest wait times must not be negative")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1, got %g", c.Retry.BackoffMultiplier)
	}
	return nil
}

// findChromePath attempts to locate Chrome executable on the system
func findChromePath() string {
	if runtime.GOOS == "windows" {
		paths := []string{
			"C:\\Program Files\\Google\\Chrome\\Application\\chrome.exe",
			"C:\\Program Files (x86)\\Google\\Chrome\\Application\\chrome.exe",
			os.Getenv("LOCALAPPDATA") + "\\Google\\Chrome\\Application\\chrome.exe",
		}

		for _, path := range paths {
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	// Return empty string to use chromedp defaults for other OS or if not found
	return ""
}
