package mcphttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i2y/lnbits-mcp/internal/usecase"
)

// Refresher rediscovers the tool set. usecase.Catalog satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Handlers struct holds dependencies for the HTTP handlers.
type Handlers struct {
	refresher Refresher
	registry  usecase.ToolRegistry
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers struct. A nil gatherer leaves /metrics unregistered.
func NewHandlers(
	refresher Refresher,
	registry usecase.ToolRegistry,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		refresher: refresher,
		registry:  registry,
		gatherer:  gatherer,
		logger:    logger.With("component", "mcphttp_handler"),
	}
}

// RegisterAdminRoutes sets up the HTTP routes for operator endpoints.
func (h *Handlers) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/refresh", h.handleRefresh)
	mux.HandleFunc("GET /admin/extensions", h.handleExtensions)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// RefreshResponse is the body of POST /admin/refresh.
type RefreshResponse struct {
	ToolCount int    `json:"tool_count"`
	Error     string `json:"error,omitempty"`
}

// handleRefresh implements POST /admin/refresh
func (h *Handlers) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received refresh request")
	count, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.logger.Error("Failed to refresh tools", slog.Any("error", err))
		writeJSON(w, http.StatusBadGateway, RefreshResponse{ToolCount: h.registry.Count(), Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, RefreshResponse{ToolCount: count})
	h.logger.Info("Refresh completed", slog.Int("tool_count", count))
}

func (h *Handlers) handleExtensions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"extensions": h.registry.Extensions(),
		"tool_count": h.registry.Count(),
	})
}

// handleHealth reports liveness along with the age of the current tool set.
func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":     "ok",
		"tool_count": h.registry.Count(),
	}
	if last := h.registry.LastRefresh(); !last.IsZero() {
		body["last_refresh"] = last.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
