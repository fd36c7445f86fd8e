package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/i2y/lnbits-mcp/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound    = errors.New("tool not found")
	ErrDiscoveryFailed = errors.New("tool discovery failed")
)

// --- Discovery ---

// SchemaFetcher retrieves the API description of an LNbits instance.
type SchemaFetcher interface {
	Fetch(ctx context.Context, baseURL string) (domain.APISchema, error)
}

// SpecParser normalizes a fetched description into operations.
type SpecParser interface {
	Parse(schema domain.APISchema) ([]domain.Operation, error)
}

// ToolRegistry stores the operations of the most recent discovery.
// Load replaces the whole contents; readers never observe a partial load.
type ToolRegistry interface {
	Load(ops []domain.Operation) int
	Get(name string) (domain.Operation, bool)
	ToolNames() []string
	Count() int
	LastRefresh() time.Time
	Extensions() []domain.ExtensionCount
	Tools() []domain.Tool
}

// --- Invocation ---

// APIClient performs authenticated requests against the wrapped API.
// Non-2xx answers come back as *domain.APIError, transport failures as *domain.NetworkError.
type APIClient interface {
	Request(ctx context.Context, method, path string, query, body map[string]any, headers map[string]string) (any, error)
	BaseURL() string
}

// OperationDispatcher turns a tool call into one HTTP request and renders the result as JSON text.
type OperationDispatcher interface {
	Dispatch(ctx context.Context, client APIClient, op domain.Operation, args map[string]any, accessToken string) (string, error)
}

// --- Connection ---

// ConnectionUpdate carries a runtime reconfiguration. Nil fields are left unchanged.
type ConnectionUpdate struct {
	URL                *string
	APIKey             *string
	BearerToken        *string
	OAuth2Token        *string
	AccessToken        *string
	AuthMethod         *string
	TimeoutSeconds     *int
	RateLimitPerMinute *int
}

// ConnectionManager owns the current connection settings and the client built from them.
type ConnectionManager interface {
	Client() (APIClient, error)
	BaseURL() string
	AccessToken() string
	Configure(ctx context.Context, update ConnectionUpdate) (map[string]any, error)
	Status() map[string]any
	TestConnection(ctx context.Context) map[string]any
	PayLightningAddress(ctx context.Context, address string, amountSats int64, comment string) (any, error)
}

// --- Observability ---

// Recorder receives tool call and discovery measurements.
type Recorder interface {
	ObserveToolCall(tool, outcome string, elapsed time.Duration)
	ObserveDiscovery(outcome string, toolCount int)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) ObserveToolCall(string, string, time.Duration) {}
func (NopRecorder) ObserveDiscovery(string, int)                  {}
