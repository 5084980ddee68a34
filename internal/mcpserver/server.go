// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes ferry's routing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ferry/internal/models"
	"github.com/starford/ferry/internal/routing"
)

const heartbeatURI = "ferry://heartbeat"

// Router resolves a file name to its destination.
type Router interface {
	Plan(filename string) routing.Key
	Route(ctx context.Context, path string) (models.Outcome, error)
}

// Querier returns every dataset row matching a lookup pattern.
type Querier interface {
	Query(ctx context.Context, pattern string) ([]models.ReferenceRow, error)
}

// HeartbeatReader returns the last heartbeat written by the watcher.
type HeartbeatReader interface {
	Read() ([]byte, error)
}

// Server wraps the MCP server with ferry tools.
type Server struct {
	mcp     *server.MCPServer
	router  Router
	dataset Querier
	beat    HeartbeatReader
	timeout time.Duration
}

type routeResult struct {
	Key     routing.Key     `json:"key"`
	Outcome *models.Outcome `json:"outcome,omitempty"`
}

// New creates a new MCP server with all ferry tools registered. timeout
// bounds each dataset read.
func New(router Router, dataset Querier, beat HeartbeatReader, timeout time.Duration) *Server {
	s := &Server{router: router, dataset: dataset, beat: beat, timeout: timeout}

	s.mcp = server.NewMCPServer(
		"Ferry",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("route_file",
		mcp.WithDescription("Show where a file with the given name would be moved and under which name. "+
			"Nothing is moved."),
		mcp.WithString("file", mcp.Required(), mcp.Description("File name, e.g. Report2024-03-15.pdf")),
	), s.routeFile)

	s.mcp.AddTool(mcp.NewTool("lookup_pattern",
		mcp.WithDescription("List the reference dataset rows matching a lookup pattern. "+
			"% matches any run of characters and _ matches one character; matching is case-sensitive."),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Lookup pattern, e.g. Report%.pdf")),
	), s.lookupPattern)

	s.mcp.AddTool(mcp.NewTool("service_status",
		mcp.WithDescription("Return the last heartbeat written by the watcher."),
	), s.serviceStatus)

	s.mcp.AddResource(
		mcp.NewResource(heartbeatURI, "Heartbeat",
			mcp.WithResourceDescription("Last heartbeat written by the watcher."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readHeartbeatResource,
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

func (s *Server) routeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := filepath.Base(file)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := routeResult{Key: s.router.Plan(name)}
	out, err := s.router.Route(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", name, err)), nil
	}
	res.Outcome = &out
	data, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) lookupPattern(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.dataset.Query(ctx, pattern)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no rows found"), nil
	}
	data, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) serviceStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.beat.Read()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readHeartbeatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := s.beat.Read()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      heartbeatURI,
			MIMEType: "text/plain",
			Text:     string(data),
		},
	}, nil
}
