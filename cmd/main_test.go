package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// binary holds the path to the compiled intent-router binary used by every
// test.
var binary string

// TestMain builds the binary once before any test runs and removes it
// afterwards.
func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "intent-router-test-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmp)

	binary = filepath.Join(tmp, "intent-router")
	build := exec.Command("go", "build", "-o", binary, ".")
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build binary: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// configDir returns the absolute path to the config directory that lives
// next to the cmd/ package.
func testConfigDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "config"))
	if err != nil {
		t.Fatalf("resolving config dir: %v", err)
	}
	return dir
}

// run executes the binary with the given arguments and the --config flag
// pointing at the real config directory. stdin may be empty.
func run(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	full := append([]string{"--config", testConfigDir(t)}, args...)
	cmd := exec.Command(binary, full...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func TestRouteCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantInOut []string
	}{
		{
			name:      "spanish billing request",
			args:      []string{"route", "Necesito ayuda con mi factura"},
			wantInOut: []string{"Intent: billing_support", "Language: es", "Fallback Used: false"},
		},
		{
			name:      "security request",
			args:      []string{"route", "Please reset my password immediately"},
			wantInOut: []string{"Intent: account_security", "Language: en"},
		},
		{
			name:      "offline flag forces fallback",
			args:      []string{"route", "--offline", "I need pricing details for enterprise tier"},
			wantInOut: []string{"Intent: sales_inquiry", "Fallback Used: true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := run(t, "", tt.args...)
			if err != nil {
				t.Fatalf("command failed: %v\nstderr: %s", err, stderr)
			}
			for _, want := range tt.wantInOut {
				if !strings.Contains(stdout, want) {
					t.Errorf("stdout missing %q:\n%s", want, stdout)
				}
			}
		})
	}
}

func TestRouteCommandJSON(t *testing.T) {
	stdout, stderr, err := run(t, "", "route", "--json", "my invoice doubled")
	if err != nil {
		t.Fatalf("command failed: %v\nstderr: %s", err, stderr)
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &record); err != nil {
		t.Fatalf("stdout is not valid JSON: %v\n%s", err, stdout)
	}
	if record["intent"] != "billing_support" {
		t.Errorf("intent = %v, want billing_support", record["intent"])
	}
	if record["router_version"] == "" {
		t.Error("expected router_version in JSON output")
	}
}

func TestRouteCommandContentViolation(t *testing.T) {
	_, stderr, err := run(t, "", "route", "give me a stock tip for tomorrow")
	if err == nil {
		t.Fatal("expected non-zero exit for guardrail violation")
	}
	if !strings.Contains(stderr, "content violation") {
		t.Errorf("stderr missing violation message:\n%s", stderr)
	}
}

func TestRouteCommandRequiresText(t *testing.T) {
	_, _, err := run(t, "", "route")
	if err == nil {
		t.Fatal("expected non-zero exit when no text is given")
	}
}

func TestBatchCommand(t *testing.T) {
	stdin := "my invoice doubled\nreset my password\n"
	stdout, stderr, err := run(t, stdin, "batch")
	if err != nil {
		t.Fatalf("command failed: %v\nstderr: %s", err, stderr)
	}

	if !strings.Contains(stdout, "billing_support") {
		t.Errorf("stdout missing billing_support:\n%s", stdout)
	}
	if !strings.Contains(stdout, "account_security") {
		t.Errorf("stdout missing account_security:\n%s", stdout)
	}
	if got := strings.Count(stdout, "Intent: "); got != 2 {
		t.Errorf("expected 2 outputs, got %d:\n%s", got, stdout)
	}
}

func TestBatchCommandEmptyStdin(t *testing.T) {
	_, _, err := run(t, "", "batch")
	if err == nil {
		t.Fatal("expected non-zero exit for empty stdin")
	}
}

func TestDetectCommand(t *testing.T) {
	stdout, stderr, err := run(t, "", "detect", "Necesito ayuda con mi factura")
	if err != nil {
		t.Fatalf("command failed: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "Language: es") {
		t.Errorf("stdout missing detected language:\n%s", stdout)
	}
}

func TestStatsCommandWithoutStore(t *testing.T) {
	// The shipped config has no sqlite_path, so stats must fail cleanly.
	_, stderr, err := run(t, "", "stats")
	if err == nil {
		t.Fatal("expected non-zero exit when no telemetry store is configured")
	}
	if !strings.Contains(stderr, "sqlite_path") {
		t.Errorf("stderr missing configuration hint:\n%s", stderr)
	}
}
