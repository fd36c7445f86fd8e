package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/i2y/lnbits-mcp/internal/domain"
	"github.com/i2y/lnbits-mcp/internal/usecase"
)

const (
	DefaultURL                = "https://demo.lnbits.com"
	DefaultTimeout            = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRateLimitPerMinute = 60
)

// Settings describe one connection to an LNbits instance.
type Settings struct {
	URL                string
	Auth               AuthConfig
	AccessToken        string
	Timeout            time.Duration
	MaxRetries         int
	RateLimitPerMinute int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		URL:                DefaultURL,
		Auth:               AuthConfig{Method: AuthAPIKeyHeader},
		Timeout:            DefaultTimeout,
		MaxRetries:         DefaultMaxRetries,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
	}
}

// Client performs authenticated JSON requests against an LNbits instance.
type Client struct {
	baseURL    string
	auth       AuthConfig
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	newBackOff func() backoff.BackOff
	lnurlp     WellKnownURLFunc
	logger     *slog.Logger
}

var _ usecase.APIClient = (*Client)(nil)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBackOff replaces the retry policy used for GET requests.
func WithBackOff(fn func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.newBackOff = fn }
}

// WithWellKnownURL overrides how Lightning addresses are turned into LNURL-pay endpoints.
func WithWellKnownURL(fn WellKnownURLFunc) ClientOption {
	return func(c *Client) { c.lnurlp = fn }
}

// NewClient creates a Client for s.
func NewClient(s Settings, logger *slog.Logger, opts ...ClientOption) *Client {
	limit := rate.Inf
	burst := 1
	if s.RateLimitPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(s.RateLimitPerMinute))
		burst = s.RateLimitPerMinute
	}
	c := &Client{
		baseURL:    strings.TrimRight(s.URL, "/"),
		auth:       s.Auth,
		http:       &http.Client{Timeout: s.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: s.MaxRetries,
		newBackOff: defaultBackOff,
		lnurlp:     DefaultWellKnownURL,
		logger:     logger.With("component", "lnbits_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// BaseURL returns the instance URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request sends one request. GET requests are retried on network errors only;
// other methods are never retried.
func (c *Client) Request(ctx context.Context, method, path string, query, body map[string]any, headers map[string]string) (any, error) {
	target, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	q := target.Query()
	for k, v := range query {
		addQueryValue(q, k, v)
	}
	for k, v := range c.auth.QueryParams() {
		q.Set(k, v)
	}
	target.RawQuery = q.Encode()

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	log := c.logger.With(slog.String("method", method), slog.String("path", path))

	retries := 0
	if method == http.MethodGet && c.maxRetries > 0 {
		retries = c.maxRetries
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(retries)), ctx)

	var result any
	err = backoff.RetryNotify(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(&domain.NetworkError{Err: err})
		}
		res, err := c.do(ctx, method, target.String(), payload, headers, log)
		if err != nil {
			var netErr *domain.NetworkError
			if errors.As(err, &netErr) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}, policy, func(err error, wait time.Duration) {
		log.Warn("Retrying request", slog.Any("error", err), slog.Duration("wait", wait))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			var netErr *domain.NetworkError
			if !errors.As(err, &netErr) {
				err = &domain.NetworkError{Err: err}
			}
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, headers map[string]string, log *slog.Logger) (any, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.auth.Headers() {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("Request error", slog.Any("error", err))
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	log.Info("API request", slog.Int("status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		return nil, &domain.APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}
	return decodeBody(data), nil
}

// decodeBody returns the JSON value of data, the raw text if it is not JSON, or nil when empty.
func decodeBody(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if !json.Valid(data) {
		return string(data)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(data)
	}
	return v
}

// errorDetail extracts the "detail" field of a JSON error body.
func errorDetail(data []byte) string {
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return string(data)
	}
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	detail, ok := m["detail"]
	if !ok {
		return ""
	}
	if s, ok := detail.(string); ok {
		return s
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return fmt.Sprint(detail)
	}
	return string(b)
}

func addQueryValue(q url.Values, key string, v any) {
	switch t := v.(type) {
	case nil:
		return
	case []any:
		for _, e := range t {
			q.Add(key, cast.ToString(e))
		}
		return
	case []string:
		for _, e := range t {
			q.Add(key, e)
		}
		return
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		s = fmt.Sprint(v)
	}
	q.Set(key, s)
}
