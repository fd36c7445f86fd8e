package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/i2y/lnbits-mcp/internal/usecase"

// DiscoverToolsUseCase fetches the API description of the configured instance,
// parses it and replaces the registry contents.
type DiscoverToolsUseCase struct {
	fetcher  SchemaFetcher
	parser   SpecParser
	registry ToolRegistry
	recorder Recorder
	logger   *slog.Logger
}

// NewDiscoverToolsUseCase creates a new DiscoverToolsUseCase.
// A nil recorder disables measurements.
func NewDiscoverToolsUseCase(
	fetcher SchemaFetcher,
	parser SpecParser,
	registry ToolRegistry,
	recorder Recorder,
	logger *slog.Logger,
) *DiscoverToolsUseCase {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &DiscoverToolsUseCase{
		fetcher:  fetcher,
		parser:   parser,
		registry: registry,
		recorder: recorder,
		logger:   logger.With("usecase", "DiscoverTools"),
	}
}

// Execute runs one discovery against baseURL and returns the number of registered tools.
// On failure the registry keeps its previous contents.
func (uc *DiscoverToolsUseCase) Execute(ctx context.Context, baseURL string) (int, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "DiscoverTools")
	defer span.End()
	span.SetAttributes(attribute.String("lnbits.url", baseURL))

	log := uc.logger.With(slog.String("base_url", baseURL))
	log.Info("Starting tool discovery")

	count, err := uc.discover(ctx, baseURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		uc.recorder.ObserveDiscovery("failure", uc.registry.Count())
		log.Error("Tool discovery failed", slog.Any("error", err))
		return 0, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}

	span.SetAttributes(attribute.Int("lnbits.tool_count", count))
	uc.recorder.ObserveDiscovery("success", count)
	log.Info("Tool discovery finished", slog.Int("tool_count", count))
	return count, nil
}

func (uc *DiscoverToolsUseCase) discover(ctx context.Context, baseURL string) (int, error) {
	schema, err := uc.fetcher.Fetch(ctx, baseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch schema from %s: %w", baseURL, err)
	}
	uc.logger.Debug("Schema fetched",
		slog.String("source", schema.Source),
		slog.String("title", schema.Title),
		slog.String("version", schema.Version))

	ops, err := uc.parser.Parse(schema)
	if err != nil {
		return 0, fmt.Errorf("failed to parse schema from %s: %w", schema.Source, err)
	}

	return uc.registry.Load(ops), nil
}
