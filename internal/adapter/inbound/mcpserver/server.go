// Package mcpserver publishes the tool catalog over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpgo "github.com/mark3labs/mcp-go/server"

	"github.com/i2y/lnbits-mcp/internal/domain"
	"github.com/i2y/lnbits-mcp/internal/usecase"
)

// Server binds a usecase.Catalog to an mcp-go server. The published tool set is
// replaced wholesale whenever the catalog reports a change.
type Server struct {
	mcp     *mcpgo.MCPServer
	catalog *usecase.Catalog
	logger  *slog.Logger
}

// New creates the MCP server and publishes the administrative tools.
// Discovered tools are published after the first successful discovery.
func New(name, version string, catalog *usecase.Catalog, logger *slog.Logger) *Server {
	s := &Server{
		catalog: catalog,
		logger:  logger.With("component", "mcp_server"),
	}

	hooks := &mcpgo.Hooks{}
	hooks.AddBeforeListTools(func(ctx context.Context, _ any, _ *mcp.ListToolsRequest) {
		if !catalog.Discovered() {
			catalog.ListTools(ctx)
		}
	})

	s.mcp = mcpgo.NewMCPServer(name, version,
		mcpgo.WithToolCapabilities(true),
		mcpgo.WithHooks(hooks),
		mcpgo.WithRecovery(),
	)

	catalog.OnToolsChanged(func(_ context.Context, tools []domain.Tool) {
		s.publish(tools)
	})
	s.publish(usecase.AdminTools())
	return s
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *mcpgo.MCPServer {
	return s.mcp
}

func (s *Server) publish(tools []domain.Tool) {
	serverTools := make([]mcpgo.ServerTool, 0, len(tools))
	for _, t := range tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			s.logger.Warn("Skipping tool with unencodable schema", slog.String("tool", t.Name), slog.Any("error", err))
			continue
		}
		serverTools = append(serverTools, mcpgo.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(t.Name, t.Description, schema),
			Handler: s.handler(t.Name),
		})
	}
	s.mcp.SetTools(serverTools...)
	s.logger.Info("Published tools", slog.Int("count", len(serverTools)))
}

func (s *Server) handler(name string) mcpgo.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(s.catalog.CallTool(ctx, name, req.GetArguments())), nil
	}
}

// ServeStdio serves JSON-RPC over in and out until ctx is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return mcpgo.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// SSE returns an SSE transport rooted at baseURL.
func (s *Server) SSE(baseURL string) *mcpgo.SSEServer {
	return mcpgo.NewSSEServer(s.mcp, mcpgo.WithBaseURL(baseURL))
}

// StreamableHTTP returns a stateless streamable HTTP transport.
func (s *Server) StreamableHTTP() *mcpgo.StreamableHTTPServer {
	return mcpgo.NewStreamableHTTPServer(s.mcp, mcpgo.WithStateLess(true))
}
