package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/i2y/lnbits-mcp/internal/domain"
	"github.com/i2y/lnbits-mcp/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// MockSchemaFetcher is a mock implementation of the SchemaFetcher interface.
type MockSchemaFetcher struct {
	mock.Mock
}

func (m *MockSchemaFetcher) Fetch(ctx context.Context, baseURL string) (domain.APISchema, error) {
	args := m.Called(ctx, baseURL)
	return args.Get(0).(domain.APISchema), args.Error(1)
}

// MockSpecParser is a mock implementation of the SpecParser interface.
type MockSpecParser struct {
	mock.Mock
}

func (m *MockSpecParser) Parse(schema domain.APISchema) ([]domain.Operation, error) {
	args := m.Called(schema)
	var ops []domain.Operation
	if v := args.Get(0); v != nil {
		ops = v.([]domain.Operation)
	}
	return ops, args.Error(1)
}

// MockToolRegistry is a mock implementation of the ToolRegistry interface.
type MockToolRegistry struct {
	mock.Mock
}

func (m *MockToolRegistry) Load(ops []domain.Operation) int {
	return m.Called(ops).Int(0)
}

func (m *MockToolRegistry) Get(name string) (domain.Operation, bool) {
	args := m.Called(name)
	return args.Get(0).(domain.Operation), args.Bool(1)
}

func (m *MockToolRegistry) ToolNames() []string {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]string)
	}
	return nil
}

func (m *MockToolRegistry) Count() int {
	return m.Called().Int(0)
}

func (m *MockToolRegistry) LastRefresh() time.Time {
	return m.Called().Get(0).(time.Time)
}

func (m *MockToolRegistry) Extensions() []domain.ExtensionCount {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]domain.ExtensionCount)
	}
	return nil
}

func (m *MockToolRegistry) Tools() []domain.Tool {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]domain.Tool)
	}
	return nil
}

// MockAPIClient is a mock implementation of the APIClient interface.
type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) Request(ctx context.Context, method, path string, query, body map[string]any, headers map[string]string) (any, error) {
	args := m.Called(ctx, method, path, query, body, headers)
	return args.Get(0), args.Error(1)
}

func (m *MockAPIClient) BaseURL() string {
	return m.Called().String(0)
}

// MockDispatcher is a mock implementation of the OperationDispatcher interface.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, client usecase.APIClient, op domain.Operation, params map[string]any, accessToken string) (string, error) {
	args := m.Called(ctx, client, op, params, accessToken)
	return args.String(0), args.Error(1)
}

// MockConnectionManager is a mock implementation of the ConnectionManager interface.
type MockConnectionManager struct {
	mock.Mock
}

func (m *MockConnectionManager) Client() (usecase.APIClient, error) {
	args := m.Called()
	var c usecase.APIClient
	if v := args.Get(0); v != nil {
		c = v.(usecase.APIClient)
	}
	return c, args.Error(1)
}

func (m *MockConnectionManager) BaseURL() string {
	return m.Called().String(0)
}

func (m *MockConnectionManager) AccessToken() string {
	return m.Called().String(0)
}

func (m *MockConnectionManager) Configure(ctx context.Context, update usecase.ConnectionUpdate) (map[string]any, error) {
	args := m.Called(ctx, update)
	var result map[string]any
	if v := args.Get(0); v != nil {
		result = v.(map[string]any)
	}
	return result, args.Error(1)
}

func (m *MockConnectionManager) Status() map[string]any {
	return m.Called().Get(0).(map[string]any)
}

func (m *MockConnectionManager) TestConnection(ctx context.Context) map[string]any {
	return m.Called(ctx).Get(0).(map[string]any)
}

func (m *MockConnectionManager) PayLightningAddress(ctx context.Context, address string, amountSats int64, comment string) (any, error) {
	args := m.Called(ctx, address, amountSats, comment)
	return args.Get(0), args.Error(1)
}

// MockRecorder is a mock implementation of the Recorder interface.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	m.Called(tool, outcome, elapsed)
}

func (m *MockRecorder) ObserveDiscovery(outcome string, toolCount int) {
	m.Called(outcome, toolCount)
}
