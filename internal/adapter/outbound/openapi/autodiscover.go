package openapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// fallbackSpecPaths are tried in order when the configured spec path is missing,
// e.g. behind a reverse proxy that mounts the docs elsewhere.
var fallbackSpecPaths = []string{
	"/openapi.json",
	"/docs/openapi.json",
	"/api/openapi.json",
	"/api/v1/openapi.json",
}

const probeTimeout = 5 * time.Second

// AutoDiscoverer probes well-known locations for an OpenAPI document.
type AutoDiscoverer struct {
	client *http.Client
	logger *slog.Logger
}

// NewAutoDiscoverer creates a new AutoDiscoverer.
func NewAutoDiscoverer(client *http.Client, logger *slog.Logger) *AutoDiscoverer {
	return &AutoDiscoverer{
		client: client,
		logger: logger.With("component", "openapi_autodiscoverer"),
	}
}

// Discover returns the first fallback URL under baseURL that serves JSON.
// The path already tried by the caller is skipped.
func (d *AutoDiscoverer) Discover(ctx context.Context, baseURL, tried string) (string, error) {
	log := d.logger.With(slog.String("base_url", baseURL))
	log.Info("Attempting to auto-discover OpenAPI schema")

	for _, path := range fallbackSpecPaths {
		if path == tried {
			continue
		}
		candidate := baseURL + path
		found, err := d.probe(ctx, candidate)
		if err != nil {
			log.Debug("Failed to check endpoint", slog.String("url", candidate), slog.Any("error", err))
			continue
		}
		if found {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no OpenAPI schema found at base URL: %s", baseURL)
}

func (d *AutoDiscoverer) probe(ctx context.Context, candidate string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json, application/vnd.oai.openapi+json")

	resp, err := d.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	return strings.Contains(resp.Header.Get("Content-Type"), "json"), nil
}
