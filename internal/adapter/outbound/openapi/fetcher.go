package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/lnbits-mcp/internal/domain"
)

// DefaultSpecPath is where FastAPI (and therefore LNbits) serves its description.
const DefaultSpecPath = "/openapi.json"

// errSpecNotFound marks a 404 on the configured spec path, which triggers probing.
var errSpecNotFound = errors.New("spec path returned 404")

// SchemaFetcher downloads the OpenAPI description of an LNbits instance.
type SchemaFetcher struct {
	httpClient     *http.Client
	specPath       string
	logger         *slog.Logger
	autoDiscoverer *AutoDiscoverer
}

// NewSchemaFetcher creates a new SchemaFetcher. An empty specPath means DefaultSpecPath.
func NewSchemaFetcher(client *http.Client, specPath string, logger *slog.Logger) *SchemaFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if specPath == "" {
		specPath = DefaultSpecPath
	}
	return &SchemaFetcher{
		httpClient:     client,
		specPath:       specPath,
		logger:         logger.With("component", "openapi_fetcher"),
		autoDiscoverer: NewAutoDiscoverer(client, logger),
	}
}

// Fetch retrieves {baseURL}{specPath}. When that path is missing, well-known
// alternatives are probed before giving up. The document is also loaded with
// kin-openapi for title and version; problems there are only logged.
func (f *SchemaFetcher) Fetch(ctx context.Context, baseURL string) (domain.APISchema, error) {
	base := strings.TrimRight(baseURL, "/")
	src := base + f.specPath
	log := f.logger.With(slog.String("source", src))
	log.Info("Fetching OpenAPI schema")

	raw, err := f.get(ctx, src)
	if errors.Is(err, errSpecNotFound) {
		discovered, discoverErr := f.autoDiscoverer.Discover(ctx, base, f.specPath)
		if discoverErr != nil {
			log.Warn("Auto-discovery failed", slog.Any("error", discoverErr))
			return domain.APISchema{}, fmt.Errorf("failed to fetch schema from %s: %w", src, err)
		}
		log.Info("Auto-discovered OpenAPI schema", slog.String("resolved_url", discovered))
		src = discovered
		raw, err = f.get(ctx, src)
	}
	if err != nil {
		log.Error("Failed to fetch schema", slog.Any("error", err))
		return domain.APISchema{}, fmt.Errorf("failed to fetch schema from %s: %w", src, err)
	}

	schema := domain.APISchema{
		Source:  src,
		Type:    domain.SchemaTypeOpenAPI,
		RawData: raw,
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, loadErr := loader.LoadFromData(raw)
	if loadErr != nil {
		log.Warn("OpenAPI document could not be loaded for validation", slog.Any("error", loadErr))
		return schema, nil
	}
	if validateErr := doc.Validate(ctx); validateErr != nil {
		log.Warn("OpenAPI schema validation failed", slog.Any("validation_error", validateErr))
	}
	if doc.Info != nil {
		schema.Title = doc.Info.Title
		schema.Version = doc.Info.Version
	}

	log.Info("Successfully fetched OpenAPI schema",
		slog.String("title", schema.Title), slog.String("version", schema.Version), slog.Int("bytes", len(raw)))
	return schema, nil
}

func (f *SchemaFetcher) get(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errSpecNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
