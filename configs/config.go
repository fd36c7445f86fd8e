package configs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/github"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/lnbits"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/memrepo"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/openapi"
)

const envPrefix = "lnbits"

// LNbitsSection is the `lnbits:` section of the configuration file.
type LNbitsSection struct {
	URL                string        `yaml:"url"`
	APIKey             string        `yaml:"api_key"`
	BearerToken        string        `yaml:"bearer_token"`
	OAuth2Token        string        `yaml:"oauth2_token"`
	AccessToken        string        `yaml:"access_token"`
	AuthMethod         string        `yaml:"auth_method"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	SpecPath           string        `yaml:"spec_path"`
}

// RegistrySection is the `registry:` section of the configuration file.
type RegistrySection struct {
	ExcludeMethods    []string `yaml:"exclude_methods"`
	ExcludePaths      []string `yaml:"exclude_paths"`
	IncludeExtensions []string `yaml:"include_extensions"`
	ExcludeExtensions []string `yaml:"exclude_extensions"`
	MaxTools          int      `yaml:"max_tools"`
}

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	LNbits   LNbitsSection   `yaml:"lnbits"`
	Registry RegistrySection `yaml:"registry"`
}

// Config holds the final application configuration.
// Precedence is defaults, then the YAML file, then LNBITS_* environment variables.
// Fields carry no envconfig defaults so that unset variables keep file values.
type Config struct {
	ConfigFilePath string `envconfig:"CONFIG_FILE"`

	URL                string        `envconfig:"URL"`
	APIKey             string        `envconfig:"API_KEY"`
	BearerToken        string        `envconfig:"BEARER_TOKEN"`
	OAuth2Token        string        `envconfig:"OAUTH2_TOKEN"`
	AccessToken        string        `envconfig:"ACCESS_TOKEN"`
	AuthMethod         string        `envconfig:"AUTH_METHOD"`
	Timeout            time.Duration `envconfig:"TIMEOUT"`
	MaxRetries         int           `envconfig:"MAX_RETRIES"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE"`
	SpecPath           string        `envconfig:"SPEC_PATH"`

	ExcludeMethods    []string `envconfig:"EXCLUDE_METHODS"`
	ExcludePaths      []string `envconfig:"EXCLUDE_PATHS"`
	IncludeExtensions []string `envconfig:"INCLUDE_EXTENSIONS"`
	ExcludeExtensions []string `envconfig:"EXCLUDE_EXTENSIONS"`
	MaxTools          int      `envconfig:"MAX_TOOLS"`

	ListenAddr               string        `envconfig:"LISTEN_ADDR"`
	AdminAddr                string        `envconfig:"ADMIN_ADDR"`
	ShutdownTimeout          time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
	ServerReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT"`
	ServerIdleTimeout        time.Duration `envconfig:"SERVER_IDLE_TIMEOUT"`
	OtelExporterOtlpEndpoint string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool          `envconfig:"OTEL_EXPORTER_OTLP_INSECURE"`
	LogLevel                 string        `envconfig:"LOG_LEVEL"`
	LogFile                  string        `envconfig:"LOG_FILE"`
}

// Default returns the configuration used when neither a file nor the environment sets a value.
func Default() Config {
	conn := lnbits.DefaultSettings()
	reg := memrepo.DefaultConfig()
	return Config{
		URL:                      conn.URL,
		AuthMethod:               string(conn.Auth.Method),
		Timeout:                  conn.Timeout,
		MaxRetries:               conn.MaxRetries,
		RateLimitPerMinute:       conn.RateLimitPerMinute,
		SpecPath:                 openapi.DefaultSpecPath,
		ExcludeMethods:           reg.ExcludeMethods,
		ExcludePaths:             reg.ExcludePaths,
		MaxTools:                 reg.MaxTools,
		ListenAddr:               ":8080",
		AdminAddr:                ":9090",
		ShutdownTimeout:          5 * time.Second,
		ServerReadTimeout:        5 * time.Second,
		ServerIdleTimeout:        120 * time.Second,
		OtelExporterOtlpInsecure: true,
		LogLevel:                 "info",
		LogFile:                  "/tmp/lnbits-mcp.log",
	}
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LNbitsSettings converts the connection fields. The result is validated.
func (c *Config) LNbitsSettings() (lnbits.Settings, error) {
	method, err := lnbits.ParseAuthMethod(c.AuthMethod)
	if err != nil {
		return lnbits.Settings{}, fmt.Errorf("invalid LNBITS_AUTH_METHOD: %w", err)
	}
	s := lnbits.Settings{
		URL: c.URL,
		Auth: lnbits.AuthConfig{
			APIKey:      c.APIKey,
			BearerToken: c.BearerToken,
			OAuth2Token: c.OAuth2Token,
			Method:      method,
		},
		AccessToken:        c.AccessToken,
		Timeout:            c.Timeout,
		MaxRetries:         c.MaxRetries,
		RateLimitPerMinute: c.RateLimitPerMinute,
	}
	if err := lnbits.ValidateSettings(s); err != nil {
		return lnbits.Settings{}, err
	}
	return s, nil
}

// RegistryConfig converts the filtering fields.
func (c *Config) RegistryConfig() memrepo.Config {
	return memrepo.Config{
		ExcludeMethods:    c.ExcludeMethods,
		ExcludePaths:      c.ExcludePaths,
		IncludeExtensions: c.IncludeExtensions,
		ExcludeExtensions: c.ExcludeExtensions,
		MaxTools:          c.MaxTools,
	}
}

// Load reads the environment once to find the config file, applies the file
// over the defaults and then applies the environment again so it wins.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process initial environment variables: %w", err)
	}

	if cfg.ConfigFilePath != "" {
		data, err := readConfigFile(cfg.ConfigFilePath)
		if err != nil {
			return nil, err
		}
		if err := cfg.applyFile(data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", cfg.ConfigFilePath, err)
		}
		slog.Info("Loaded configuration from file.", "path", cfg.ConfigFilePath)

		if err := envconfig.Process(envPrefix, &cfg); err != nil {
			return nil, fmt.Errorf("failed to process overriding environment variables: %w", err)
		}
	}

	return &cfg, nil
}

// readConfigFile accepts a local path or a github://owner/repo/path[@ref] URL.
func readConfigFile(path string) ([]byte, error) {
	if github.IsGitHubURL(path) {
		data, err := github.NewLoader(nil).Load(context.Background(), path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from GitHub '%s': %w", path, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return data, nil
}

// applyFile decodes data over the current values. Keys missing from the file are left alone.
func (c *Config) applyFile(data []byte) error {
	file := FileConfig{
		LNbits: LNbitsSection{
			URL:                c.URL,
			APIKey:             c.APIKey,
			BearerToken:        c.BearerToken,
			OAuth2Token:        c.OAuth2Token,
			AccessToken:        c.AccessToken,
			AuthMethod:         c.AuthMethod,
			Timeout:            c.Timeout,
			MaxRetries:         c.MaxRetries,
			RateLimitPerMinute: c.RateLimitPerMinute,
			SpecPath:           c.SpecPath,
		},
		Registry: RegistrySection{
			ExcludeMethods:    c.ExcludeMethods,
			ExcludePaths:      c.ExcludePaths,
			IncludeExtensions: c.IncludeExtensions,
			ExcludeExtensions: c.ExcludeExtensions,
			MaxTools:          c.MaxTools,
		},
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	l, r := file.LNbits, file.Registry
	c.URL, c.APIKey, c.BearerToken, c.OAuth2Token = l.URL, l.APIKey, l.BearerToken, l.OAuth2Token
	c.AccessToken, c.AuthMethod, c.SpecPath = l.AccessToken, l.AuthMethod, l.SpecPath
	c.Timeout, c.MaxRetries, c.RateLimitPerMinute = l.Timeout, l.MaxRetries, l.RateLimitPerMinute
	c.ExcludeMethods, c.ExcludePaths = r.ExcludeMethods, r.ExcludePaths
	c.IncludeExtensions, c.ExcludeExtensions = r.IncludeExtensions, r.ExcludeExtensions
	c.MaxTools = r.MaxTools
	return nil
}
