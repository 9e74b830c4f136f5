package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the gallery archiver
type Config struct {
	// Remote site settings
	Site SiteConfig `yaml:"site" json:"site"`

	// Persistent store settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Filesystem output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Gallery walk settings
	Walk WalkConfig `yaml:"walk" json:"walk"`

	// Metadata harvest settings
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Download worker settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig holds settings for the remote site
type SiteConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	Cookie         string        `yaml:"cookie" json:"cookie"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// DatabaseConfig holds the persistent store location
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// OutputConfig holds filesystem layout configuration
type OutputConfig struct {
	RootDirectory string `yaml:"root_directory" json:"root_directory"`
}

// WalkConfig holds gallery walk configuration
type WalkConfig struct {
	MaxFetchRetries int           `yaml:"max_fetch_retries" json:"max_fetch_retries"`
	RetryStep       time.Duration `yaml:"retry_step" json:"retry_step"`
	DelayMin        time.Duration `yaml:"delay_min" json:"delay_min"`
	DelayMax        time.Duration `yaml:"delay_max" json:"delay_max"`
}

// HarvestConfig holds metadata harvest configuration
type HarvestConfig struct {
	Comments   bool          `yaml:"comments" json:"comments"`
	DelayEvery int           `yaml:"delay_every" json:"delay_every"`
	Delay      time.Duration `yaml:"delay" json:"delay"`
}

// DownloadConfig holds download worker configuration
type DownloadConfig struct {
	ContentRetries    int           `yaml:"content_retries" json:"content_retries"`
	ThumbnailRetries  int           `yaml:"thumbnail_retries" json:"thumbnail_retries"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	ContentDelayMin   time.Duration `yaml:"content_delay_min" json:"content_delay_min"`
	ContentDelayMax   time.Duration `yaml:"content_delay_max" json:"content_delay_max"`
	ThumbnailDelayMin time.Duration `yaml:"thumbnail_delay_min" json:"thumbnail_delay_min"`
	ThumbnailDelayMax time.Duration `yaml:"thumbnail_delay_max" json:"thumbnail_delay_max"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// yaml.v3 has no native duration support, so every section carrying duration
// fields decodes and encodes through a string mirror. Fields absent from the
// file keep their current values, which lets file contents layer over the
// defaults.

func parseYAMLDuration(s string, into *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*into = d
	return nil
}

type rawSiteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Cookie         string `yaml:"cookie"`
	UserAgent      string `yaml:"user_agent"`
	RequestTimeout string `yaml:"request_timeout"`
}

func (c *SiteConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw rawSiteConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.BaseURL != "" {
		c.BaseURL = raw.BaseURL
	}
	if raw.Cookie != "" {
		c.Cookie = raw.Cookie
	}
	if raw.UserAgent != "" {
		c.UserAgent = raw.UserAgent
	}
	return parseYAMLDuration(raw.RequestTimeout, &c.RequestTimeout)
}

func (c SiteConfig) MarshalYAML() (interface{}, error) {
	return rawSiteConfig{
		BaseURL:        c.BaseURL,
		Cookie:         c.Cookie,
		UserAgent:      c.UserAgent,
		RequestTimeout: c.RequestTimeout.String(),
	}, nil
}

type rawWalkConfig struct {
	MaxFetchRetries int    `yaml:"max_fetch_retries"`
	RetryStep       string `yaml:"retry_step"`
	DelayMin        string `yaml:"delay_min"`
	DelayMax        string `yaml:"delay_max"`
}

func (c *WalkConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw rawWalkConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxFetchRetries != 0 {
		c.MaxFetchRetries = raw.MaxFetchRetries
	}
	if err := parseYAMLDuration(raw.RetryStep, &c.RetryStep); err != nil {
		return err
	}
	if err := parseYAMLDuration(raw.DelayMin, &c.DelayMin); err != nil {
		return err
	}
	return parseYAMLDuration(raw.DelayMax, &c.DelayMax)
}

func (c WalkConfig) MarshalYAML() (interface{}, error) {
	return rawWalkConfig{
		MaxFetchRetries: c.MaxFetchRetries,
		RetryStep:       c.RetryStep.String(),
		DelayMin:        c.DelayMin.String(),
		DelayMax:        c.DelayMax.String(),
	}, nil
}

type rawHarvestConfig struct {
	Comments   *bool  `yaml:"comments"`
	DelayEvery int    `yaml:"delay_every"`
	Delay      string `yaml:"delay"`
}

func (c *HarvestConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw rawHarvestConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Comments != nil {
		c.Comments = *raw.Comments
	}
	if raw.DelayEvery != 0 {
		c.DelayEvery = raw.DelayEvery
	}
	return parseYAMLDuration(raw.Delay, &c.Delay)
}

func (c HarvestConfig) MarshalYAML() (interface{}, error) {
	comments := c.Comments
	return rawHarvestConfig{
		Comments:   &comments,
		DelayEvery: c.DelayEvery,
		Delay:      c.Delay.String(),
	}, nil
}

type rawDownloadConfig struct {
	ContentRetries    int    `yaml:"content_retries"`
	ThumbnailRetries  int    `yaml:"thumbnail_retries"`
	ProbeTimeout      string `yaml:"probe_timeout"`
	ContentDelayMin   string `yaml:"content_delay_min"`
	ContentDelayMax   string `yaml:"content_delay_max"`
	ThumbnailDelayMin string `yaml:"thumbnail_delay_min"`
	ThumbnailDelayMax string `yaml:"thumbnail_delay_max"`
}

func (c *DownloadConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw rawDownloadConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.ContentRetries != 0 {
		c.ContentRetries = raw.ContentRetries
	}
	if raw.ThumbnailRetries != 0 {
		c.ThumbnailRetries = raw.ThumbnailRetries
	}
	for _, pair := range []struct {
		raw  string
		into *time.Duration
	}{
		{raw.ProbeTimeout, &c.ProbeTimeout},
		{raw.ContentDelayMin, &c.ContentDelayMin},
		{raw.ContentDelayMax, &c.ContentDelayMax},
		{raw.ThumbnailDelayMin, &c.ThumbnailDelayMin},
		{raw.ThumbnailDelayMax, &c.ThumbnailDelayMax},
	} {
		if err := parseYAMLDuration(pair.raw, pair.into); err != nil {
			return err
		}
	}
	return nil
}

func (c DownloadConfig) MarshalYAML() (interface{}, error) {
	return rawDownloadConfig{
		ContentRetries:    c.ContentRetries,
		ThumbnailRetries:  c.ThumbnailRetries,
		ProbeTimeout:      c.ProbeTimeout.String(),
		ContentDelayMin:   c.ContentDelayMin.String(),
		ContentDelayMax:   c.ContentDelayMax.String(),
		ThumbnailDelayMin: c.ThumbnailDelayMin.String(),
		ThumbnailDelayMax: c.ThumbnailDelayMax.String(),
	}, nil
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:        "https://www.furaffinity.net",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			RequestTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./furarchiver.db",
		},
		Output: OutputConfig{
			RootDirectory: "./archive",
		},
		Walk: WalkConfig{
			MaxFetchRetries: 10,
			RetryStep:       30 * time.Second,
			DelayMin:        1000 * time.Millisecond,
			DelayMax:        2500 * time.Millisecond,
		},
		Harvest: HarvestConfig{
			Comments:   true,
			DelayEvery: 3,
			Delay:      time.Second,
		},
		Download: DownloadConfig{
			ContentRetries:    5,
			ThumbnailRetries:  3,
			ProbeTimeout:      10 * time.Second,
			ContentDelayMin:   1 * time.Second,
			ContentDelayMax:   4 * time.Second,
			ThumbnailDelayMin: 500 * time.Millisecond,
			ThumbnailDelayMax: 1500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if cookie := os.Getenv("FURARCHIVER_COOKIE"); cookie != "" {
		c.Site.Cookie = cookie
	}
	if userAgent := os.Getenv("FURARCHIVER_USER_AGENT"); userAgent != "" {
		c.Site.UserAgent = userAgent
	}
	if baseURL := os.Getenv("FURARCHIVER_BASE_URL"); baseURL != "" {
		c.Site.BaseURL = baseURL
	}
	if dbPath := os.Getenv("FURARCHIVER_DB_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if rootDir := os.Getenv("FURARCHIVER_OUTPUT_DIR"); rootDir != "" {
		c.Output.RootDirectory = rootDir
	}
	if retries := os.Getenv("FURARCHIVER_MAX_FETCH_RETRIES"); retries != "" {
		var val int
		fmt.Sscanf(retries, "%d", &val)
		if val > 0 {
			c.Walk.MaxFetchRetries = val
		}
	}
	if logLevel := os.Getenv("FURARCHIVER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".furarchiver.yaml",
		".furarchiver.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "furarchiver", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "furarchiver", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".furarchiver.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("site base URL is required"))
	}
	if c.Site.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Output.RootDirectory == "" {
		errs = append(errs, errors.New("output root directory is required"))
	}

	if c.Walk.MaxFetchRetries <= 0 {
		errs = append(errs, errors.New("max fetch retries must be positive"))
	}
	if c.Walk.RetryStep <= 0 {
		errs = append(errs, errors.New("retry step must be positive"))
	}
	if c.Walk.DelayMin < 0 || c.Walk.DelayMax < c.Walk.DelayMin {
		errs = append(errs, errors.New("walk delay range is invalid"))
	}

	if c.Download.ContentRetries <= 0 {
		errs = append(errs, errors.New("content retries must be positive"))
	}
	if c.Download.ThumbnailRetries <= 0 {
		errs = append(errs, errors.New("thumbnail retries must be positive"))
	}
	if c.Download.ContentDelayMax < c.Download.ContentDelayMin {
		errs = append(errs, errors.New("content delay range is invalid"))
	}
	if c.Download.ThumbnailDelayMax < c.Download.ThumbnailDelayMin {
		errs = append(errs, errors.New("thumbnail delay range is invalid"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if cookie, ok := flags["cookie"].(string); ok && cookie != "" {
		c.Site.Cookie = cookie
	}
	if dbPath, ok := flags["database"].(string); ok && dbPath != "" {
		c.Database.Path = dbPath
	}
	if rootDir, ok := flags["output"].(string); ok && rootDir != "" {
		c.Output.RootDirectory = rootDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".furarchiver.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
