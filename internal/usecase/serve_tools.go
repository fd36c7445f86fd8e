package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"golang.org/x/sync/singleflight"

	"github.com/i2y/lnbits-mcp/internal/domain"
)

// Catalog merges the administrative tools with the discovered ones and routes calls to either.
type Catalog struct {
	discover   *DiscoverToolsUseCase
	invoke     *InvokeToolUseCase
	registry   ToolRegistry
	connection ConnectionManager
	recorder   Recorder
	validator  adminValidator
	logger     *slog.Logger

	group      singleflight.Group
	discovered atomic.Bool

	mu        sync.Mutex
	listeners []func(ctx context.Context, tools []domain.Tool)
}

// NewCatalog creates a new Catalog. A nil recorder disables measurements.
func NewCatalog(
	discover *DiscoverToolsUseCase,
	invoke *InvokeToolUseCase,
	registry ToolRegistry,
	connection ConnectionManager,
	recorder Recorder,
	logger *slog.Logger,
) (*Catalog, error) {
	validator, err := newAdminValidator()
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Catalog{
		discover:   discover,
		invoke:     invoke,
		registry:   registry,
		connection: connection,
		recorder:   recorder,
		validator:  validator,
		logger:     logger.With("usecase", "Catalog"),
	}, nil
}

// OnToolsChanged registers fn to be called with the new tool list after every successful refresh.
func (c *Catalog) OnToolsChanged(fn func(ctx context.Context, tools []domain.Tool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Discovered reports whether at least one discovery has succeeded.
func (c *Catalog) Discovered() bool {
	return c.discovered.Load()
}

// ListTools returns the administrative tools followed by the discovered ones.
// Discovery runs first while no discovery has succeeded yet.
func (c *Catalog) ListTools(ctx context.Context) []domain.Tool {
	if !c.discovered.Load() {
		if _, err := c.Refresh(ctx); err != nil {
			c.logger.Warn("Serving administrative tools only", slog.Any("error", err))
		}
	}
	return c.tools()
}

func (c *Catalog) tools() []domain.Tool {
	tools := AdminTools()
	for _, t := range c.registry.Tools() {
		if _, reserved := ParseAdminTool(t.Name); reserved {
			c.logger.Warn("Dropping discovered tool that shadows an administrative tool", slog.String("tool", t.Name))
			continue
		}
		tools = append(tools, t)
	}
	return tools
}

// Refresh rediscovers tools from the configured instance. Concurrent calls share one discovery.
func (c *Catalog) Refresh(ctx context.Context) (int, error) {
	v, err, shared := c.group.Do("refresh", func() (any, error) {
		count, err := c.discover.Execute(ctx, c.connection.BaseURL())
		if err != nil {
			return 0, err
		}
		c.discovered.Store(true)
		c.notify(ctx)
		return count, nil
	})
	if shared {
		c.logger.Debug("Joined in-flight refresh")
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (c *Catalog) notify(ctx context.Context) {
	c.mu.Lock()
	listeners := append([]func(context.Context, []domain.Tool){}, c.listeners...)
	c.mu.Unlock()
	if len(listeners) == 0 {
		return
	}
	tools := c.tools()
	for _, fn := range listeners {
		fn(ctx, tools)
	}
}

// CallTool runs the named tool and renders the outcome as text. It never returns an error:
// failures are reported in the text so the calling model can read them.
func (c *Catalog) CallTool(ctx context.Context, name string, args map[string]any) (text string) {
	callID := uuid.NewString()
	log := c.logger.With(slog.String("call_id", callID), slog.String("tool", name))
	log.Info("Tool call received")

	start := time.Now()
	label, outcome := name, "success"
	defer func() {
		if r := recover(); r != nil {
			log.Error("Tool call panicked", slog.Any("panic", r))
			text, outcome = fmt.Sprintf("Error: %v", r), "error"
		}
		c.recorder.ObserveToolCall(label, outcome, time.Since(start))
	}()

	if args == nil {
		args = map[string]any{}
	}

	var err error
	if tool, ok := ParseAdminTool(name); ok {
		text, err = c.callAdmin(ctx, tool, args)
	} else {
		text, err = c.invoke.Execute(ctx, name, args)
		if errors.Is(err, ErrToolNotFound) {
			label, outcome = "unknown", "unknown"
			log.Warn("Unknown tool")
			return "Unknown tool: " + name
		}
	}
	if err != nil {
		outcome = "error"
		log.Error("Tool call failed", slog.Any("error", err))
		return renderError(err)
	}
	return text
}

// renderError maps an error to the text returned to the caller.
func renderError(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return "LNbits API error: " + apiErr.Error()
	}
	var netErr *domain.NetworkError
	if errors.As(err, &netErr) {
		return "LNbits API error: " + netErr.Error()
	}
	var lnErr *domain.LightningAddressError
	if errors.As(err, &lnErr) {
		return "LNbits API error: " + lnErr.Error()
	}
	return "Error: " + err.Error()
}

func (c *Catalog) callAdmin(ctx context.Context, tool AdminTool, args map[string]any) (string, error) {
	if err := c.validator.validate(tool, args); err != nil {
		return "", err
	}

	switch tool {
	case AdminConfigure:
		upd, err := connectionUpdate(args)
		if err != nil {
			return "", err
		}
		result, err := c.connection.Configure(ctx, upd)
		if err != nil {
			return "", err
		}
		return renderJSON(result)

	case AdminTestConnection:
		return renderJSON(c.connection.TestConnection(ctx))

	case AdminGetConfiguration:
		return renderJSON(c.connection.Status())

	case AdminRefreshTools:
		count, err := c.Refresh(ctx)
		if err != nil {
			return renderJSON(map[string]any{
				"success":    false,
				"message":    err.Error(),
				"tool_count": c.registry.Count(),
			})
		}
		return renderJSON(map[string]any{
			"success":    true,
			"message":    fmt.Sprintf("Refreshed tool list: %d tools discovered", count),
			"tool_count": count,
		})

	case AdminListExtensions:
		extensions := map[string]int{}
		total := 0
		for _, ext := range c.registry.Extensions() {
			extensions[ext.Name] = ext.Count
			total += ext.Count
		}
		return renderJSON(map[string]any{
			"extensions":       extensions,
			"total_extensions": len(extensions),
			"total_tools":      total,
		})

	case AdminPayLightningAddress:
		address := cast.ToString(args["lightning_address"])
		amount, err := cast.ToInt64E(args["amount_sats"])
		if err != nil {
			return "", fmt.Errorf("amount_sats must be an integer: %w", err)
		}
		result, err := c.connection.PayLightningAddress(ctx, address, amount, cast.ToString(args["comment"]))
		if err != nil {
			return "", err
		}
		return renderJSON(result)
	}

	return "", fmt.Errorf("unhandled administrative tool: %s", tool)
}
