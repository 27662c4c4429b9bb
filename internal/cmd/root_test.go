package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

// freePort returns a TCP port that was free a moment ago
func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer ln.Close()
	return strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
}

func TestVersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	output, err := executeCommand(cmd, "--version")
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "mini-http version 0.1.0") {
		t.Errorf("Expected version information, got: %s", output)
	}
}

func TestHelpFlag(t *testing.T) {
	cmd := NewRootCmd()
	output, err := executeCommand(cmd, "--help")
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	requiredContent := []string{
		"mini-http <port>",
		"--config",
		"--root",
		"--debug",
		"--workers",
		"--timeout",
		"--access-log",
	}

	for _, content := range requiredContent {
		if !strings.Contains(output, content) {
			t.Errorf("Help output missing: %s", content)
		}
	}
}

func TestInvalidPortArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"Missing", nil, "expected exactly one argument"},
		{"Extra", []string{"8080", "9090"}, "expected exactly one argument"},
		{"Not a number", []string{"http"}, "not a number"},
		{"Zero", []string{"0"}, "must be between 1 and 65535"},
		{"Negative", []string{"-1"}, ""},
		{"Too large", []string{"65536"}, "must be between 1 and 65535"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeCommand(NewRootCmd(), tt.args...)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
			if !strings.Contains(output, "Usage:") {
				t.Errorf("Expected usage on the error stream, got: %s", output)
			}
		})
	}
}

func TestValidatePortArg(t *testing.T) {
	showVersion = false
	for _, port := range []string{"1", "80", "8080", "65535"} {
		if err := validatePortArg(nil, []string{port}); err != nil {
			t.Errorf("Port %s should be valid: %v", port, err)
		}
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  root: /from/config\n  max_conns: 8\n  conn_timeout_ms: 1000\n"
	if err := os.WriteFile(configFile, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cmd := NewRootCmd()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd.SetContext(ctx)

	_, err := executeCommand(cmd, "-c", configFile, "-r", dir, "-t", "250ms", freePort(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Server.Root != dir {
		t.Errorf("Expected root flag to win, got %s", cfg.Server.Root)
	}
	if cfg.Server.MaxConns != 8 {
		t.Errorf("Expected max_conns from config file, got %d", cfg.Server.MaxConns)
	}
	if cfg.Server.ConnTimeout != 250 {
		t.Errorf("Expected timeout flag to win, got %d", cfg.Server.ConnTimeout)
	}
}

func TestServeUntilCancelled(t *testing.T) {
	root := t.TempDir()
	port := freePort(t)

	cmd := NewRootCmd()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd.SetContext(ctx)

	output, err := executeCommand(cmd, "--no-color", "-r", root, "-w", "2", port)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "listening on") {
		t.Errorf("Expected startup banner, got: %s", output)
	}
	if !strings.Contains(output, "Handled 0 connections") {
		t.Errorf("Expected shutdown summary, got: %s", output)
	}
	if cfg.Server.Port != mustAtoi(t, port) {
		t.Errorf("Expected port %s, got %d", port, cfg.Server.Port)
	}
	if cfg.Server.MaxConns != 2 {
		t.Errorf("Expected 2 workers, got %d", cfg.Server.MaxConns)
	}
}

func TestPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer ln.Close()
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	output, err := executeCommand(NewRootCmd(), "-r", t.TempDir(), port)
	if err == nil {
		t.Fatal("Expected a startup error")
	}
	if strings.Contains(output, "Usage:") {
		t.Errorf("Runtime errors should not print usage, got: %s", output)
	}
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	if err != nil {
		t.Fatalf("Bad number %q: %v", s, err)
	}
	return n
}
