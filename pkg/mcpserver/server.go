// Package mcpserver exposes a toolset over the Model Context Protocol using
// mark3labs/mcp-go. Integrators get a transport with spec-compliant error
// payloads and zero additional mapping logic.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/tollgate/tollgate-go/pkg/mcperr"
	"github.com/tollgate/tollgate-go/pkg/toolset"
)

// Options configures the served MCP identity.
type Options struct {
	Name    string
	Version string
}

// New builds an MCP server with every tool in the set attached.
func New(set *toolset.Set, opts Options) *server.MCPServer {
	if opts.Name == "" {
		opts.Name = "tollgate"
	}
	if opts.Version == "" {
		opts.Version = "0.0.0"
	}

	srv := server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(true))
	Attach(srv, set)
	return srv
}

// Attach registers every tool currently in the set on the server. Calls are
// dispatched through the set, so validation, gating, wrapping and metering
// all apply.
func Attach(srv *server.MCPServer, set *toolset.Set) {
	for _, name := range set.List() {
		def := set.Get(name)
		if def == nil {
			continue
		}

		raw, err := json.Marshal(set.Schema(name))
		if err != nil {
			log.Warn().Str("tool", name).Err(err).Msg("Skipping tool with unserializable schema")
			continue
		}

		tool := mcp.NewToolWithRawSchema(def.Name, def.Description, raw)
		srv.AddTool(tool, dispatchHandler(set, def.Name))
	}
}

// ServeStdio runs the server over stdio until the context is cancelled.
func ServeStdio(ctx context.Context, set *toolset.Set, opts Options) error {
	srv := New(set, opts)
	return server.ServeStdio(srv, server.WithStdioContextFunc(func(context.Context) context.Context {
		return ctx
	}))
}

func dispatchHandler(set *toolset.Set, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := set.Dispatch(ctx, name, request.GetArguments())
		if err != nil {
			return errorResult(err, name), nil
		}

		switch v := result.(type) {
		case string:
			return mcp.NewToolResultText(v), nil
		default:
			body, merr := json.Marshal(v)
			if merr != nil {
				return errorResult(fmt.Errorf("encoding tool result: %w", merr), name), nil
			}
			return mcp.NewToolResultText(string(body)), nil
		}
	}
}

// errorResult converts a taxonomy error into a protocol tool error carrying
// the serialized {code, message, data} projection.
func errorResult(err error, tool string) *mcp.CallToolResult {
	terr := mcperr.Normalize(err, tool)
	body, merr := json.Marshal(terr.Object())
	if merr != nil {
		return mcp.NewToolResultError(terr.Message)
	}
	return mcp.NewToolResultError(string(body))
}
