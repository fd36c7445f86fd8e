package memrepo_test

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/memrepo"
	"github.com/i2y/lnbits-mcp/internal/domain"
)

func newTestRegistry(cfg memrepo.Config) *memrepo.Registry {
	return memrepo.NewRegistry(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func op(name, method, path string) domain.Operation {
	return domain.Operation{ToolName: name, Method: method, Path: path, Tag: "Test"}
}

func extOp(name, ext string) domain.Operation {
	return domain.Operation{ToolName: name, Method: "GET", Path: "/" + ext + "/api/v1/things", Tag: ext, ExtensionName: ext}
}

func TestRegistry_LoadFiltering(t *testing.T) {
	tests := []struct {
		name string
		cfg  memrepo.Config
		ops  []domain.Operation
		want []string
	}{
		{
			name: "default config drops DELETE",
			cfg:  memrepo.DefaultConfig(),
			ops: []domain.Operation{
				op("a_list_x", "GET", "/api/v1/x"),
				op("a_delete_x", "DELETE", "/api/v1/x/{id}"),
				op("a_delete_y", "delete", "/api/v1/y/{id}"),
			},
			want: []string{"a_list_x"},
		},
		{
			name: "skip tags",
			cfg:  memrepo.DefaultConfig(),
			ops: []domain.Operation{
				{ToolName: "admin_ui_get_wallet", Method: "GET", Path: "/api/v1/admin", Tag: "Admin UI"},
				{ToolName: "websocket_list_ws", Method: "GET", Path: "/api/v1/ws", Tag: "Websocket"},
				op("a_list_x", "GET", "/api/v1/x"),
			},
			want: []string{"a_list_x"},
		},
		{
			name: "excluded prefixes and non API routes",
			cfg:  memrepo.DefaultConfig(),
			ops: []domain.Operation{
				op("docs", "GET", "/docs/api/v1/oauth2-redirect"),
				op("spec", "GET", "/openapi.json"),
				op("page", "GET", "/wallet"),
				op("ext_page", "GET", "/lnurlp/links"),
				op("ok", "GET", "/lnurlp/api/v1/links"),
			},
			want: []string{"ok"},
		},
		{
			name: "include list keeps core",
			cfg:  memrepo.Config{IncludeExtensions: []string{"lnurlp"}},
			ops: []domain.Operation{
				extOp("lnurlp_list_things", "lnurlp"),
				extOp("tpos_list_things", "tpos"),
				op("core_list_x", "GET", "/api/v1/x"),
			},
			want: []string{"lnurlp_list_things", "core_list_x"},
		},
		{
			name: "empty include list drops every extension",
			cfg:  memrepo.Config{IncludeExtensions: []string{}},
			ops: []domain.Operation{
				extOp("lnurlp_list_things", "lnurlp"),
				op("core_list_x", "GET", "/api/v1/x"),
			},
			want: []string{"core_list_x"},
		},
		{
			name: "exclude list",
			cfg:  memrepo.Config{ExcludeExtensions: []string{"tpos"}},
			ops: []domain.Operation{
				extOp("lnurlp_list_things", "lnurlp"),
				extOp("tpos_list_things", "tpos"),
			},
			want: []string{"lnurlp_list_things"},
		},
		{
			name: "max tools",
			cfg:  memrepo.Config{MaxTools: 2},
			ops: []domain.Operation{
				op("one", "GET", "/api/v1/one"),
				op("two", "GET", "/api/v1/two"),
				op("three", "GET", "/api/v1/three"),
			},
			want: []string{"one", "two"},
		},
		{
			name: "no cap",
			cfg:  memrepo.Config{MaxTools: 0},
			ops: []domain.Operation{
				op("one", "GET", "/api/v1/one"),
				op("two", "GET", "/api/v1/two"),
			},
			want: []string{"one", "two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(tt.cfg)
			count := reg.Load(tt.ops)
			assert.Equal(t, len(tt.want), count)
			assert.Equal(t, len(tt.want), reg.Count())
			assert.Equal(t, tt.want, reg.ToolNames())
		})
	}
}

func TestRegistry_LoadReplacesState(t *testing.T) {
	reg := newTestRegistry(memrepo.DefaultConfig())
	assert.True(t, reg.LastRefresh().IsZero())

	reg.Load([]domain.Operation{op("first", "GET", "/api/v1/first")})
	_, ok := reg.Get("first")
	require.True(t, ok)

	before := time.Now()
	count := reg.Load([]domain.Operation{op("gone", "DELETE", "/api/v1/gone")})
	assert.Zero(t, count)
	_, ok = reg.Get("first")
	assert.False(t, ok, "load must replace, not merge")
	assert.False(t, reg.LastRefresh().Before(before), "refresh time is set even when nothing survives")
}

func TestRegistry_Extensions(t *testing.T) {
	reg := newTestRegistry(memrepo.Config{})
	reg.Load([]domain.Operation{
		extOp("tpos_a", "tpos"),
		op("core_a", "GET", "/api/v1/a"),
		extOp("lnurlp_a", "lnurlp"),
		extOp("lnurlp_b", "lnurlp"),
		op("core_b", "GET", "/api/v1/b"),
	})

	assert.Equal(t, []domain.ExtensionCount{
		{Name: "core", Count: 2},
		{Name: "lnurlp", Count: 2},
		{Name: "tpos", Count: 1},
	}, reg.Extensions())
}

func TestRegistry_Tools(t *testing.T) {
	reg := newTestRegistry(memrepo.DefaultConfig())
	reg.Load([]domain.Operation{
		{
			ToolName: "payments_decode_payment", Method: "POST", Path: "/api/v1/payments/decode",
			Summary: "Api Payments Decode",
			RequestBodySchema: map[string]any{
				"properties": map[string]any{"data": map[string]any{"type": "string", "title": "Data"}},
				"required":   []any{"data"},
			},
		},
		{ToolName: "core_list_health", Method: "GET", Path: "/api/v1/health", Summary: "Health"},
	})

	tools := reg.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "payments_decode_payment", tools[0].Name)
	assert.Equal(t, domain.CuratedDescriptions["payments_decode_payment"], tools[0].Description)
	assert.Equal(t, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data": map[string]any{"type": "string", "description": "Data"},
		},
		"required": []string{"data"},
	}, tools[0].InputSchema)

	assert.Equal(t, "Health", tools[1].Description)
	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, tools[1].InputSchema)
}

// Readers must never observe a partially loaded registry.
func TestRegistry_ConcurrentLoadAndRead(t *testing.T) {
	reg := newTestRegistry(memrepo.Config{})

	batch := func(prefix string) []domain.Operation {
		ops := make([]domain.Operation, 50)
		for i := range ops {
			ops[i] = op(fmt.Sprintf("%s_%d", prefix, i), "GET", fmt.Sprintf("/api/v1/%s/%d", prefix, i))
		}
		return ops
	}
	a, b := batch("a"), batch("b")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				assert.Contains(t, []int{0, 50}, reg.Count())
				assert.Contains(t, []int{0, 50}, len(reg.Tools()))
			}
		}()
	}
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			reg.Load(a)
		} else {
			reg.Load(b)
		}
	}
	close(stop)
	wg.Wait()
}
