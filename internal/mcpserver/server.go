// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Raido's link resolution tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/linkservice"
)

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp *server.MCPServer
	svc *linkservice.Service
}

// New creates a new MCP server with all Raido tools registered.
func New(svc *linkservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("classify_link",
		mcp.WithDescription("Classify an obsidian://open deep link as mapped, unmapped, or missing."),
		mcp.WithString("uri", mcp.Required(), mcp.Description("The raw deep link to classify")),
	), s.classifyLink)

	s.mcp.AddTool(mcp.NewTool("fetch_document",
		mcp.WithDescription("Resolve an obsidian://open deep link and return the referenced document's "+
			"content, served from the source vault or, when unreachable, from the local cache."),
		mcp.WithString("uri", mcp.Required(), mcp.Description("The raw deep link to resolve")),
	), s.fetchDocument)

	s.mcp.AddTool(mcp.NewTool("list_vaults",
		mcp.WithDescription("List all registered vault mappings with their roots and cache policy."),
	), s.listVaults)

	s.mcp.AddTool(mcp.NewTool("map_vault",
		mcp.WithDescription("Register or replace a vault mapping so deep links into it resolve. "+
			"See the raido://link-format resource for the accepted link format."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Vault name exactly as it appears in links (case-sensitive)")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Filesystem root of the vault; relative paths resolve against the current vault")),
		mcp.WithString("cache_policy", mcp.Description("\"enabled\" to mirror resolved files locally, \"disabled\" (default) otherwise")),
		mcp.WithString("description", mcp.Description("Optional free-form annotation")),
	), s.mapVault)

	s.mcp.AddTool(mcp.NewTool("remove_vault",
		mcp.WithDescription("Remove a vault mapping and purge its local cache namespace."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name of the mapping to remove")),
	), s.removeVault)

	// Resource: accepted deep-link format.
	s.mcp.AddResource(
		mcp.NewResource("raido://link-format", "Deep-Link Format",
			mcp.WithResourceDescription("The deep-link format Raido resolves and how references are normalized."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) classifyLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, err := req.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cls, err := s.svc.Classify(uri)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unrecognized link: %s", uri)), nil
	}
	out, _ := json.MarshalIndent(cls, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) fetchDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, err := req.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Fetch(uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(res.Content)), nil
}

func (s *Server) listVaults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.ListVaults(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) mapVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	policy := req.GetString("cache_policy", "")
	description := req.GetString("description", "")

	if err := s.svc.MapVault(name, path, policy, description); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, _ := s.svc.LookupVault(name)
	out, _ := json.MarshalIndent(m, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) removeVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.RemoveVault(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed mapping: %s", name)), nil
}

func (s *Server) readLinkFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://link-format",
			MIMEType: "text/markdown",
			Text:     LinkFormatContract,
		},
	}, nil
}
