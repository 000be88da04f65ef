package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// API configuration for the remote clock-out service
	API APIConfig `mapstructure:"api"`

	// Auth configuration for token storage and recovery
	Auth AuthConfig `mapstructure:"auth"`

	// Extractor configuration for the browser login flow
	Extractor ExtractorConfig `mapstructure:"extractor"`

	// Watcher configuration for the poll loop
	Watcher WatcherConfig `mapstructure:"watcher"`

	// Images configuration for download and annotation
	Images ImagesConfig `mapstructure:"images"`

	// Application configuration
	App AppConfig `mapstructure:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// Port is the HTTP server port
	Port string `mapstructure:"port"`

	// ShutdownTimeout is the timeout for server shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// APIConfig holds remote clock-out API configuration
type APIConfig struct {
	// BaseURL is the base URL of the remote service
	BaseURL string `mapstructure:"base_url"`

	// ListPath is the API path for the clock-out list
	ListPath string `mapstructure:"list_path"`

	// RefererPath is the in-app page set as Referer on API requests
	RefererPath string `mapstructure:"referer_path"`

	// Vin is the vehicle identifier to query
	Vin string `mapstructure:"vin"`

	// DeptID is the department identifier to query
	DeptID int `mapstructure:"dept_id"`

	// PageSize is the list page size
	PageSize int `mapstructure:"page_size"`

	// Lang is the language header sent to the API
	Lang string `mapstructure:"lang"`

	// Timeout is the per-request timeout
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds token store and refresh configuration
type AuthConfig struct {
	// TokenPath is the token store file location
	TokenPath string `mapstructure:"token_path"`

	// AutoRefresh enables browser-driven token recovery
	AutoRefresh bool `mapstructure:"auto_refresh"`

	// Username for the login form; from env or config, never logged
	Username string `mapstructure:"username"`

	// Password for the login form; from env or config, never logged
	Password string `mapstructure:"password"`

	// FailureTerms overrides the detector's token-failure vocabulary
	FailureTerms []string `mapstructure:"failure_terms"`

	// AuthCodes overrides the application codes treated as auth failures
	AuthCodes []int `mapstructure:"auth_codes"`
}

// ExtractorConfig holds browser login extractor configuration
type ExtractorConfig struct {
	// LoginPath is the login page path relative to the API base URL
	LoginPath string `mapstructure:"login_path"`

	// PostLoginPath is the page visited after login to trigger API calls
	PostLoginPath string `mapstructure:"post_login_path"`

	// Headless controls whether Chrome runs without a display
	Headless bool `mapstructure:"headless"`

	// FormTimeout bounds the wait for the login form
	FormTimeout time.Duration `mapstructure:"form_timeout"`

	// LoginTimeout bounds the wait for authenticated state
	LoginTimeout time.Duration `mapstructure:"login_timeout"`

	// HarvestTimeout bounds the wait for the token to surface
	HarvestTimeout time.Duration `mapstructure:"harvest_timeout"`
}

// WatcherConfig holds poll loop configuration
type WatcherConfig struct {
	// Interval is the time between polls
	Interval time.Duration `mapstructure:"interval"`

	// Lookback is how far back each poll window reaches
	Lookback time.Duration `mapstructure:"lookback"`
}

// ImagesConfig holds image download and annotation configuration
type ImagesConfig struct {
	// OutputDir is where annotated images are written
	OutputDir string `mapstructure:"output_dir"`

	// DownloadTimeout bounds one image download
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`

	// Language selects the font candidate list ("english" or "chinese")
	Language string `mapstructure:"language"`

	// FontPaths overrides the font discovery candidates
	FontPaths []string `mapstructure:"font_paths"`
}

// AppConfig holds application configuration
type AppConfig struct {
	// Component is the name of the component
	Component string `mapstructure:"component"`

	// LogLevel is the log level
	LogLevel string `mapstructure:"log_level"`
}

// LoginURL returns the absolute login page URL
func (c *Config) LoginURL() string {
	return joinURL(c.API.BaseURL, c.Extractor.LoginPath)
}

// PostLoginURL returns the absolute post-login page URL
func (c *Config) PostLoginURL() string {
	return joinURL(c.API.BaseURL, c.Extractor.PostLoginPath)
}

// RefererURL returns the absolute Referer header value for API requests
func (c *Config) RefererURL() string {
	return joinURL(c.API.BaseURL, c.API.RefererPath)
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure paths and file types
	configureViper(v)

	// Read configs file
	if err := readConfigs(v); err != nil {
		return nil, err
	}

	// Load environment variables from app.env
	if err := loadEnvVars(v); err != nil {
		return nil, err
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configs: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// configureViper sets up Viper configuration paths and types
func configureViper(v *viper.Viper) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/clockout-watcher/")

	// Enable environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("CLOCKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// readConfigs attempts to read the configuration file
func readConfigs(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// Only return error if it's not a "configs file not found" error
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read configs file: %w", err)
		}
		// Otherwise, continue with defaults and environment variables
	}
	return nil
}

// loadEnvVars loads environment variables from app.env file
func loadEnvVars(v *viper.Viper) error {
	envViper := viper.New()
	envViper.SetConfigName("app")
	envViper.SetConfigType("env")
	envViper.AddConfigPath("./configs")

	if err := envViper.ReadInConfig(); err == nil {
		// Merge environment file into main configs if found
		for _, key := range envViper.AllKeys() {
			v.Set(key, envViper.Get(key))
		}
	}
	return nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if cfg.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be positive")
	}

	if cfg.Auth.TokenPath == "" {
		return fmt.Errorf("auth.token_path is required")
	}
	if cfg.Auth.AutoRefresh {
		if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
			return fmt.Errorf("auth.username and auth.password are required when auto_refresh is enabled")
		}
	}

	if cfg.Watcher.Interval <= 0 {
		return fmt.Errorf("watcher.interval must be positive")
	}
	if cfg.Watcher.Lookback <= 0 {
		return fmt.Errorf("watcher.lookback must be positive")
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// API defaults
	v.SetDefault("api.base_url", "https://bj-robot.aimo.tech")
	v.SetDefault("api.list_path", "/api/getClockOutList")
	v.SetDefault("api.referer_path", "/new-alarm-handle")
	v.SetDefault("api.vin", "as00214")
	v.SetDefault("api.dept_id", 10)
	v.SetDefault("api.page_size", 50)
	v.SetDefault("api.lang", "zh_TW")
	v.SetDefault("api.timeout", 30*time.Second)

	// Auth defaults
	v.SetDefault("auth.token_path", "./data/tokens.json")
	v.SetDefault("auth.auto_refresh", true)

	// Extractor defaults
	v.SetDefault("extractor.login_path", "/login")
	v.SetDefault("extractor.post_login_path", "/new-alarm-handle")
	v.SetDefault("extractor.headless", true)
	v.SetDefault("extractor.form_timeout", 10*time.Second)
	v.SetDefault("extractor.login_timeout", 15*time.Second)
	v.SetDefault("extractor.harvest_timeout", 20*time.Second)

	// Watcher defaults
	v.SetDefault("watcher.interval", time.Minute)
	v.SetDefault("watcher.lookback", 24*time.Hour)

	// Images defaults
	v.SetDefault("images.output_dir", "./data/images")
	v.SetDefault("images.download_timeout", 30*time.Second)
	v.SetDefault("images.language", "chinese")

	// App defaults
	v.SetDefault("app.component", "clockout-watcher")
	v.SetDefault("app.log_level", "info")
}
