package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InvokeToolUseCase executes a discovered tool against the configured instance.
type InvokeToolUseCase struct {
	registry   ToolRegistry
	connection ConnectionManager
	dispatcher OperationDispatcher
	logger     *slog.Logger
}

// NewInvokeToolUseCase creates a new InvokeToolUseCase.
func NewInvokeToolUseCase(registry ToolRegistry, connection ConnectionManager, dispatcher OperationDispatcher, logger *slog.Logger) *InvokeToolUseCase {
	return &InvokeToolUseCase{
		registry:   registry,
		connection: connection,
		dispatcher: dispatcher,
		logger:     logger.With("usecase", "InvokeTool"),
	}
}

// Execute looks the tool up in the registry and dispatches it.
// Unknown names yield ErrToolNotFound; transport errors are returned unwrapped
// so callers can match *domain.APIError and *domain.NetworkError.
func (uc *InvokeToolUseCase) Execute(ctx context.Context, toolName string, args map[string]any) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "InvokeTool")
	defer span.End()
	span.SetAttributes(attribute.String("mcp.tool", toolName))

	log := uc.logger.With(slog.String("tool_name", toolName))

	op, ok := uc.registry.Get(toolName)
	if !ok {
		log.Warn("Tool not found in registry")
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	client, err := uc.connection.Client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to get LNbits client: %w", err)
	}

	span.SetAttributes(
		attribute.String("http.method", op.Method),
		attribute.String("http.route", op.Path),
	)
	log.Debug("Dispatching operation", slog.String("method", op.Method), slog.String("path", op.Path))

	text, err := uc.dispatcher.Dispatch(ctx, client, op, args, uc.connection.AccessToken())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Failed to dispatch tool", slog.Any("error", err))
		return "", err
	}

	log.Info("Tool invocation successful")
	return text, nil
}
