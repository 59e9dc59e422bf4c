package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jbctechsolutions/intent-router/language"
	"github.com/jbctechsolutions/intent-router/router"
	"github.com/jbctechsolutions/intent-router/telemetry"
)

// Server exposes the intent router over the Model Context Protocol using
// stdio transport. It registers three tools: route, detect_language, and
// stats.
type Server struct {
	service   *router.Service
	detector  *language.Detector
	collector *telemetry.Collector
}

// NewServer constructs a Server from already-initialized dependencies. The
// collector may be nil, in which case the stats tool reports it as
// unavailable.
func NewServer(service *router.Service, detector *language.Detector, collector *telemetry.Collector) *Server {
	return &Server{service: service, detector: detector, collector: collector}
}

// Start registers all tools with a new MCP server and begins serving
// requests over stdio. It blocks until stdin is closed or an error occurs.
func (s *Server) Start() error {
	srv := server.NewMCPServer(
		"intent-router",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	srv.AddTool(mcpgo.NewTool("route",
		mcpgo.WithDescription("Classify a support request into an intent with graceful offline degradation"),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The support request text to classify"),
		),
		mcpgo.WithString("request_id",
			mcpgo.Description("Opaque correlation token carried into the output metadata"),
		),
		mcpgo.WithBoolean("offline",
			mcpgo.Description("Force the deterministic fallback classifier"),
		),
	), s.handleRoute)

	srv.AddTool(mcpgo.NewTool("detect_language",
		mcpgo.WithDescription("Detect the language of a text using the offline heuristic detector"),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The text to analyze"),
		),
	), s.handleDetectLanguage)

	srv.AddTool(mcpgo.NewTool("stats",
		mcpgo.WithDescription("Show aggregate routing decision statistics"),
		mcpgo.WithString("intent",
			mcpgo.Description("Scope the total decision count to one intent"),
		),
	), s.handleStats)

	return server.ServeStdio(srv)
}

// handleRoute runs the full routing pipeline for a single text.
func (s *Server) handleRoute(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	output, err := s.service.Route(ctx, text, &router.RouteOptions{
		RequestID:       req.GetString("request_id", ""),
		OfflineOverride: req.GetBool("offline", false),
	})
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("route: %v", err)), nil
	}

	b, err := json.Marshal(output)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// detectResult is the JSON shape returned by the detect_language tool.
type detectResult struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// handleDetectLanguage runs only the language detector.
func (s *Server) handleDetectLanguage(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	detected := s.detector.Detect(text)
	b, err := json.Marshal(detectResult{
		Language:   detected.Code,
		Confidence: detected.Confidence,
		Source:     detected.Source,
	})
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// handleStats returns aggregate decision statistics from the collector.
func (s *Server) handleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.collector == nil {
		return mcpgo.NewToolResultError("telemetry collector not available"), nil
	}

	stats, err := s.collector.GetStats(req.GetString("intent", ""))
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("get stats: %v", err)), nil
	}

	b, err := json.Marshal(stats)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcpgo.NewToolResultText(string(b)), nil
}
