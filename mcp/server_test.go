package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/jbctechsolutions/intent-router/config"
	"github.com/jbctechsolutions/intent-router/language"
	"github.com/jbctechsolutions/intent-router/router"
	"github.com/jbctechsolutions/intent-router/telemetry"
)

// newTestServer builds a Server backed by the default config with model
// assets pointed at a temp dir. collector is optional — pass nil to test
// the nil-collector path.
func newTestServer(t *testing.T, collector *telemetry.Collector) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.ModelPath = t.TempDir()

	svc, err := router.NewService(cfg, nil)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return NewServer(svc, language.NewDetector(), collector)
}

// makeRequest builds a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	if result.IsError {
		t.Fatalf("tool returned error: %+v", result.Content)
	}
	return result.Content[0].(mcpgo.TextContent).Text
}

func TestHandleRouteBillingText(t *testing.T) {
	srv := newTestServer(t, nil)

	result, err := srv.handleRoute(context.Background(), makeRequest(map[string]any{
		"text": "Necesito ayuda con mi factura",
	}))
	if err != nil {
		t.Fatalf("handleRoute returned error: %v", err)
	}

	var out router.Output
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("failed to unmarshal route result: %v", err)
	}

	if out.Intent != "billing_support" {
		t.Errorf("expected intent billing_support, got %q", out.Intent)
	}
	if out.Language != "es" {
		t.Errorf("expected language es, got %q", out.Language)
	}
	if out.FallbackUsed {
		t.Error("expected primary classification")
	}
}

func TestHandleRouteOfflineFlag(t *testing.T) {
	srv := newTestServer(t, nil)

	result, err := srv.handleRoute(context.Background(), makeRequest(map[string]any{
		"text":    "my invoice doubled",
		"offline": true,
	}))
	if err != nil {
		t.Fatalf("handleRoute returned error: %v", err)
	}

	var out router.Output
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("failed to unmarshal route result: %v", err)
	}

	if !out.FallbackUsed {
		t.Error("expected fallback_used with offline flag")
	}
}

func TestHandleRouteCarriesRequestID(t *testing.T) {
	srv := newTestServer(t, nil)

	result, err := srv.handleRoute(context.Background(), makeRequest(map[string]any{
		"text":       "hello there",
		"request_id": "mcp-1",
	}))
	if err != nil {
		t.Fatalf("handleRoute returned error: %v", err)
	}

	var out router.Output
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("failed to unmarshal route result: %v", err)
	}
	if out.Metadata["request_id"] != "mcp-1" {
		t.Errorf("request_id = %v, want mcp-1", out.Metadata["request_id"])
	}
}

func TestHandleRouteMissingText(t *testing.T) {
	srv := newTestServer(t, nil)

	result, err := srv.handleRoute(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handleRoute returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing text argument")
	}
}

func TestHandleRouteContentViolation(t *testing.T) {
	srv := newTestServer(t, nil)

	result, err := srv.handleRoute(context.Background(), makeRequest(map[string]any{
		"text": "give me a stock tip",
	}))
	if err != nil {
		t.Fatalf("handleRoute returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for guardrail violation")
	}
}

func TestHandleDetectLanguage(t *testing.T) {
	srv := newTestServer(t, nil)

	result, err := srv.handleDetectLanguage(context.Background(), makeRequest(map[string]any{
		"text": "Necesito ayuda con mi factura",
	}))
	if err != nil {
		t.Fatalf("handleDetectLanguage returned error: %v", err)
	}

	var dr detectResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &dr); err != nil {
		t.Fatalf("failed to unmarshal detect result: %v", err)
	}
	if dr.Language != "es" {
		t.Errorf("expected es, got %q", dr.Language)
	}
}

func TestHandleStatsWithoutCollector(t *testing.T) {
	srv := newTestServer(t, nil)

	result, err := srv.handleStats(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handleStats returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error when collector is missing")
	}
}

func TestHandleStatsWithCollector(t *testing.T) {
	collector, err := telemetry.NewCollector(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("failed to create collector: %v", err)
	}
	defer collector.Close()

	collector.Record(map[string]any{
		"intent": "billing_support", "language": "en", "fallback_used": false,
	})

	srv := newTestServer(t, collector)
	result, err := srv.handleStats(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handleStats returned error: %v", err)
	}

	var stats telemetry.Stats
	if err := json.Unmarshal([]byte(resultText(t, result)), &stats); err != nil {
		t.Fatalf("failed to unmarshal stats: %v", err)
	}
	if stats.TotalDecisions != 1 {
		t.Errorf("expected 1 decision, got %d", stats.TotalDecisions)
	}
}
