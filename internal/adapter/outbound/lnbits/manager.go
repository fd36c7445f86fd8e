package lnbits

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/i2y/lnbits-mcp/internal/usecase"
)

const maskedValue = "***MASKED***"

// Manager owns the runtime connection settings and the client built from them.
// Settings can be replaced at runtime through Configure.
type Manager struct {
	mu       sync.Mutex
	settings Settings
	client   *Client
	opts     []ClientOption
	onChange func(ctx context.Context)
	logger   *slog.Logger
}

var _ usecase.ConnectionManager = (*Manager)(nil)

// NewManager creates a Manager. opts are applied to every client it builds.
func NewManager(s Settings, logger *slog.Logger, opts ...ClientOption) *Manager {
	return &Manager{
		settings: s,
		opts:     opts,
		logger:   logger.With("component", "lnbits_manager"),
	}
}

// OnChange registers fn to run after every successful Configure.
func (m *Manager) OnChange(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Client returns the client for the current settings, creating it on first use.
func (m *Manager) Client() (usecase.APIClient, error) {
	return m.lnClient(), nil
}

func (m *Manager) lnClient() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		m.client = NewClient(m.settings, m.logger, m.opts...)
	}
	return m.client
}

func (m *Manager) BaseURL() string {
	return strings.TrimRight(m.Settings().URL, "/")
}

func (m *Manager) AccessToken() string {
	return m.Settings().AccessToken
}

// Configure applies update. Invalid updates leave the current settings untouched.
func (m *Manager) Configure(ctx context.Context, update usecase.ConnectionUpdate) (map[string]any, error) {
	m.mu.Lock()
	next := m.settings
	applyUpdate(&next, update)
	if err := ValidateSettings(next); err != nil {
		m.mu.Unlock()
		m.logger.Warn("Rejected configuration update", slog.Any("error", err))
		return nil, err
	}
	m.settings = next
	m.client = nil
	onChange := m.onChange
	m.mu.Unlock()

	m.logger.Info("Configuration updated",
		slog.String("lnbits_url", next.URL),
		slog.String("auth_method", string(next.Auth.Method)))

	if onChange != nil {
		onChange(ctx)
	}
	return map[string]any{
		"success": true,
		"message": "Configuration updated successfully",
		"config":  maskedConfig(next),
	}, nil
}

// Status returns the current configuration with secrets masked.
func (m *Manager) Status() map[string]any {
	s := m.Settings()
	return map[string]any{
		"is_configured": s.Auth.IsConfigured(),
		"config":        maskedConfig(s),
	}
}

// TestConnection reads the wallet behind the configured key.
func (m *Manager) TestConnection(ctx context.Context) map[string]any {
	info, err := m.lnClient().Request(ctx, http.MethodGet, "/api/v1/wallet", nil, nil, nil)
	if err != nil {
		m.logger.Warn("Connection test failed", slog.Any("error", err))
		return map[string]any{
			"success": false,
			"message": "Connection failed",
			"error":   err.Error(),
		}
	}
	return map[string]any{
		"success":     true,
		"message":     "Connection successful",
		"wallet_info": info,
	}
}

func (m *Manager) PayLightningAddress(ctx context.Context, address string, amountSats int64, comment string) (any, error) {
	return m.lnClient().PayLightningAddress(ctx, address, amountSats, comment)
}

func applyUpdate(s *Settings, u usecase.ConnectionUpdate) {
	if u.URL != nil {
		s.URL = strings.TrimSpace(*u.URL)
	}
	if u.APIKey != nil {
		s.Auth.APIKey = *u.APIKey
	}
	if u.BearerToken != nil {
		s.Auth.BearerToken = *u.BearerToken
	}
	if u.OAuth2Token != nil {
		s.Auth.OAuth2Token = *u.OAuth2Token
	}
	if u.AccessToken != nil {
		s.AccessToken = *u.AccessToken
	}
	if u.AuthMethod != nil {
		s.Auth.Method = AuthMethod(*u.AuthMethod)
	}
	if u.TimeoutSeconds != nil {
		s.Timeout = time.Duration(*u.TimeoutSeconds) * time.Second
	}
	if u.RateLimitPerMinute != nil {
		s.RateLimitPerMinute = *u.RateLimitPerMinute
	}
}

// ValidateSettings checks settings loaded from configuration or built at runtime.
func ValidateSettings(s Settings) error {
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid lnbits_url %q: must be an absolute http or https URL", s.URL)
	}
	if _, err := ParseAuthMethod(string(s.Auth.Method)); err != nil {
		return err
	}
	if s.Timeout < time.Second || s.Timeout > 300*time.Second {
		return fmt.Errorf("timeout must be between 1 and 300 seconds, got %s", s.Timeout)
	}
	if s.RateLimitPerMinute < 1 || s.RateLimitPerMinute > 1000 {
		return fmt.Errorf("rate_limit_per_minute must be between 1 and 1000, got %d", s.RateLimitPerMinute)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", s.MaxRetries)
	}
	return nil
}

func mask(secret string) any {
	if secret == "" {
		return nil
	}
	return maskedValue
}

func maskedConfig(s Settings) map[string]any {
	return map[string]any{
		"lnbits_url":            s.URL,
		"api_key":               mask(s.Auth.APIKey),
		"bearer_token":          mask(s.Auth.BearerToken),
		"oauth2_token":          mask(s.Auth.OAuth2Token),
		"access_token":          mask(s.AccessToken),
		"auth_method":           string(s.Auth.Method),
		"timeout":               int(s.Timeout / time.Second),
		"max_retries":           s.MaxRetries,
		"rate_limit_per_minute": s.RateLimitPerMinute,
	}
}
