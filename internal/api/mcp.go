package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/traindeck/traindeck/internal/commands"
)

const baseURLResource = "config://api-base-url"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Commands *commands.Service
	Version  string
}

// NewMCPServer creates an MCP server exposing every command as a tool and
// the current base URL as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"traindeck",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("traindeck: API base URL configuration and host environment lookups for the train board front-end."),
		server.WithRecovery(),
	)

	tools := []mcp.Tool{
		mcp.NewTool(commands.CmdGreet,
			mcp.WithDescription("Return a greeting for the given name."),
			mcp.WithString("name", mcp.Description("Name to greet"), mcp.Required()),
		),
		mcp.NewTool(commands.CmdSetAPIBaseURL,
			mcp.WithDescription("Replace the API base URL used by the front-end. The value is stored verbatim."),
			mcp.WithString("url", mcp.Description("New base URL"), mcp.Required()),
		),
		mcp.NewTool(commands.CmdGetAPIBaseURL,
			mcp.WithDescription("Return the current API base URL."),
		),
		mcp.NewTool(commands.CmdGetEnvVar,
			mcp.WithDescription("Return a host environment variable, or null when it is not set."),
			mcp.WithString("key", mcp.Description("Variable name"), mcp.Required()),
		),
		mcp.NewTool(commands.CmdGetEnvVars,
			mcp.WithDescription("Return several host environment variables as a JSON object; unset keys map to null."),
			mcp.WithArray("keys", mcp.Description("Variable names"), mcp.Required(), mcp.WithStringItems()),
		),
		mcp.NewTool(commands.CmdGetRuntimeConfig,
			mcp.WithDescription("Return API_BASE_URL, SHOW_FOOTER and DEBUG_DATETIME as the front-end sees them."),
		),
	}
	for _, tool := range tools {
		s.AddTool(tool, mcpInvoke(deps, tool.Name))
	}

	s.AddResource(
		mcp.NewResource(
			baseURLResource,
			"API Base URL",
			mcp.WithResourceDescription("Current API base URL"),
			mcp.WithMIMEType("text/plain"),
		),
		mcpResourceBaseURL(deps),
	)

	return s
}

func mcpInvoke(deps MCPDeps, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := deps.Commands.Invoke(ctx, "mcp", name, args)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		if s, ok := result.(string); ok {
			return mcpText(s), nil
		}
		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceBaseURL(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     deps.Commands.APIBaseURL(),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
