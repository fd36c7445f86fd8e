package mcphttp_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/lnbits-mcp/internal/adapter/inbound/mcphttp"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/memrepo"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/metrics"
	"github.com/i2y/lnbits-mcp/internal/domain"
)

type stubRefresher struct {
	count int
	err   error
	calls int
}

func (s *stubRefresher) Refresh(context.Context) (int, error) {
	s.calls++
	return s.count, s.err
}

func newServer(t *testing.T, refresher *stubRefresher, gatherer prometheus.Gatherer) (*httptest.Server, *memrepo.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := memrepo.NewRegistry(memrepo.DefaultConfig(), logger)

	mux := http.NewServeMux()
	mcphttp.NewHandlers(refresher, registry, gatherer, logger).RegisterAdminRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, registry
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandleRefresh(t *testing.T) {
	tests := []struct {
		name       string
		refresher  *stubRefresher
		wantStatus int
		wantCount  float64
		wantError  string
	}{
		{
			name:       "success",
			refresher:  &stubRefresher{count: 42},
			wantStatus: http.StatusAccepted,
			wantCount:  42,
		},
		{
			name:       "discovery failure keeps current count",
			refresher:  &stubRefresher{err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
			wantCount:  1,
			wantError:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, registry := newServer(t, tt.refresher, nil)
			registry.Load([]domain.Operation{{ToolName: "wallet_get_wallet", Method: "GET", Path: "/api/v1/wallet", Tag: "Wallet"}})

			resp, err := http.Post(ts.URL+"/admin/refresh", "application/json", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decode(t, resp)
			assert.Equal(t, tt.wantCount, body["tool_count"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			} else {
				assert.NotContains(t, body, "error")
			}
			assert.Equal(t, 1, tt.refresher.calls)
		})
	}
}

func TestHandleRefresh_RejectsGet(t *testing.T) {
	ts, _ := newServer(t, &stubRefresher{}, nil)
	resp, err := http.Get(ts.URL + "/admin/refresh")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleExtensions(t *testing.T) {
	ts, registry := newServer(t, &stubRefresher{}, nil)
	registry.Load([]domain.Operation{
		{ToolName: "wallet_get_wallet", Method: "GET", Path: "/api/v1/wallet", Tag: "Wallet"},
		{ToolName: "lnurlp_list_links", Method: "GET", Path: "/lnurlp/api/v1/links", Tag: "lnurlp", ExtensionName: "lnurlp"},
		{ToolName: "lnurlp_create_links", Method: "POST", Path: "/lnurlp/api/v1/links", Tag: "lnurlp", ExtensionName: "lnurlp"},
	})

	resp, err := http.Get(ts.URL + "/admin/extensions")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, float64(3), body["tool_count"])
	assert.Equal(t, []any{
		map[string]any{"name": "core", "count": float64(1)},
		map[string]any{"name": "lnurlp", "count": float64(2)},
	}, body["extensions"])
}

func TestHandleHealth(t *testing.T) {
	ts, registry := newServer(t, &stubRefresher{}, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "last_refresh")

	registry.Load([]domain.Operation{{ToolName: "wallet_get_wallet", Method: "GET", Path: "/api/v1/wallet", Tag: "Wallet"}})
	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body = decode(t, resp)
	assert.Equal(t, float64(1), body["tool_count"])
	assert.Contains(t, body, "last_refresh")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("lnbits_mcp", reg)
	collector.ObserveDiscovery("success", 7)

	ts, _ := newServer(t, &stubRefresher{}, reg)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(raw), "lnbits_mcp_discovered_tools 7"), string(raw))
}

func TestMetricsEndpoint_DisabledWithoutGatherer(t *testing.T) {
	ts, _ := newServer(t, &stubRefresher{}, nil)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
