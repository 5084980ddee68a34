package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ferry/internal/dataset"
	"github.com/starford/ferry/internal/heartbeat"
	"github.com/starford/ferry/internal/routing"
	"github.com/starford/ferry/internal/storage"
	"github.com/starford/ferry/internal/testutil"
)

func testServer(t *testing.T) (*Server, *heartbeat.Writer) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	book := testutil.WriteWorkbook(t, filepath.Join(dir, "routing.xlsx"), "Routing", [][]string{
		testutil.Header,
		{"Report2024.pdf", "Report2024.pdf", "/archive/reports", "Archive_XXXX", ""},
		{"Invoice_A.pdf", "Invoice_A.pdf", "", "", ""},
	})
	lookup := dataset.New(dataset.Options{Path: book, Sheet: "Routing", Columns: dataset.DefaultColumns(), TempDir: dir}, logger)
	engine := routing.NewEngine(lookup, routing.NewResolver(logger), logger)
	beat := heartbeat.NewWriter(filepath.Join(dir, "Heartbeat_MoveFiles.txt"), storage.NewFS(), logger)

	return New(engine, lookup, beat, 5*time.Second), beat
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "route_file":
		result, err = srv.routeFile(ctx, req)
	case "lookup_pattern":
		result, err = srv.lookupPattern(ctx, req)
	case "service_status":
		result, err = srv.serviceStatus(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestRouteFile(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "route_file", map[string]interface{}{"file": "Report2024.pdf"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"filename": "Archive_2024.pdf"`) {
		t.Errorf("route result = %s", text)
	}
	if !strings.Contains(text, `"pattern": "Report%.pdf"`) {
		t.Errorf("route result missing pattern: %s", text)
	}
}

func TestRouteFile_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "route_file", map[string]interface{}{"file": "Unknown.pdf"})
	if !r.IsError {
		t.Fatal("expected error for unknown file")
	}
	if !strings.Contains(resultText(r), "no match for file Unknown.pdf") {
		t.Errorf("error = %q", resultText(r))
	}
}

func TestRouteFile_MissingFolder(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "route_file", map[string]interface{}{"file": "Invoice_A.pdf"})
	if !r.IsError {
		t.Fatal("expected error for blank output folder")
	}
}

func TestRouteFile_MissingArgument(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "route_file", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing file argument")
	}
}

func TestLookupPattern(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "lookup_pattern", map[string]interface{}{"pattern": "%.pdf"})
	text := resultText(r)
	if !strings.Contains(text, "/archive/reports") || !strings.Contains(text, "Invoice_A.pdf") {
		t.Errorf("lookup result = %s", text)
	}

	r = callTool(t, srv, "lookup_pattern", map[string]interface{}{"pattern": "report%"})
	if text := resultText(r); text != "no rows found" {
		t.Errorf("case-sensitive lookup = %q", text)
	}
}

func TestServiceStatus(t *testing.T) {
	srv, beat := testServer(t)

	r := callTool(t, srv, "service_status", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error before any heartbeat")
	}

	s := heartbeat.Status{Now: time.Now(), WatchedPath: "/srv/inbox"}
	if err := beat.Write(s); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "service_status", map[string]interface{}{})
	if text := resultText(r); text != string(s.Render()) {
		t.Errorf("status = %q", text)
	}
}
