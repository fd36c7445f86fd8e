package memrepo

import (
	"log/slog"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/i2y/lnbits-mcp/internal/domain"
	"github.com/i2y/lnbits-mcp/internal/usecase"
)

// Config controls which discovered operations become tools.
type Config struct {
	ExcludeMethods []string
	ExcludePaths   []string
	// IncludeExtensions and ExcludeExtensions are ignored when nil.
	// They never filter core operations.
	IncludeExtensions []string
	ExcludeExtensions []string
	// MaxTools caps the registry size; zero or less means unlimited.
	MaxTools int
}

// DefaultConfig excludes destructive methods and documentation routes.
func DefaultConfig() Config {
	return Config{
		ExcludeMethods: []string{"DELETE"},
		ExcludePaths:   []string{"/docs", "/openapi.json", "/redoc"},
		MaxTools:       200,
	}
}

// snapshot is immutable once published.
type snapshot struct {
	ops         map[string]domain.Operation
	order       []string
	lastRefresh time.Time
}

// Registry holds the operations from the most recent load.
// Readers always see a complete snapshot; Load swaps it atomically.
type Registry struct {
	cfg     Config
	current atomic.Pointer[snapshot]
	now     func() time.Time
	logger  *slog.Logger
}

var _ usecase.ToolRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	r := &Registry{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "mem_repo"),
	}
	r.current.Store(&snapshot{ops: map[string]domain.Operation{}})
	return r
}

// Load filters ops and replaces the registry contents. It returns the stored count.
func (r *Registry) Load(ops []domain.Operation) int {
	next := &snapshot{ops: make(map[string]domain.Operation, len(ops))}
	skipped := 0
	for _, op := range ops {
		if reason, skip := r.skipReason(op); skip {
			r.logger.Debug("Skipping operation",
				slog.String("tool_name", op.ToolName), slog.String("reason", reason))
			skipped++
			continue
		}
		if r.cfg.MaxTools > 0 && len(next.order) >= r.cfg.MaxTools {
			r.logger.Warn("Max tools reached", slog.Int("max_tools", r.cfg.MaxTools))
			break
		}
		if _, dup := next.ops[op.ToolName]; !dup {
			next.order = append(next.order, op.ToolName)
		}
		next.ops[op.ToolName] = op
	}
	next.lastRefresh = r.now()
	r.current.Store(next)

	r.logger.Info("Tool registry loaded",
		slog.Int("tool_count", len(next.order)), slog.Int("skipped", skipped))
	return len(next.order)
}

// Get returns the operation registered under name.
func (r *Registry) Get(name string) (domain.Operation, bool) {
	op, ok := r.current.Load().ops[name]
	return op, ok
}

// ToolNames returns registered names in load order.
func (r *Registry) ToolNames() []string {
	return slices.Clone(r.current.Load().order)
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return len(r.current.Load().order)
}

// LastRefresh returns the time of the most recent Load, or the zero time.
func (r *Registry) LastRefresh() time.Time {
	return r.current.Load().lastRefresh
}

// Extensions groups registered operations by owning extension, sorted by name.
func (r *Registry) Extensions() []domain.ExtensionCount {
	snap := r.current.Load()
	counts := map[string]int{}
	for _, name := range snap.order {
		counts[snap.ops[name].Extension()]++
	}
	out := make([]domain.ExtensionCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, domain.ExtensionCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tools converts every registered operation into a tool, in load order.
func (r *Registry) Tools() []domain.Tool {
	snap := r.current.Load()
	tools := make([]domain.Tool, 0, len(snap.order))
	for _, name := range snap.order {
		op := snap.ops[name]
		tools = append(tools, domain.Tool{
			Name:        op.ToolName,
			Description: domain.Describe(op),
			InputSchema: BuildInputSchema(op),
		})
	}
	return tools
}
