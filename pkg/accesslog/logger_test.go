package accesslog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		entry    Entry
		expected string
	}{
		{
			name: "Full request",
			entry: Entry{
				Time: ts, Peer: "127.0.0.1:52000",
				Method: "GET", Target: "/index.html", Version: "HTTP/1.1",
				Status: 200, Bytes: 1234,
			},
			expected: "2024-03-01T12:00:00Z 127.0.0.1:52000 \"GET /index.html HTTP/1.1\" 200 1234\n",
		},
		{
			name:     "Unparsed request",
			entry:    Entry{Time: ts, Peer: "127.0.0.1:52001", Status: 400},
			expected: "2024-03-01T12:00:00Z 127.0.0.1:52001 \"- - -\" 400 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.entry); got != tt.expected {
				t.Errorf("Format() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDisabledLogger(t *testing.T) {
	logger, err := NewLogger("", Rotation{})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	if logger.Enabled() {
		t.Error("Expected logger without a path to be disabled")
	}
	if err := logger.Log(Entry{Status: 200}); err != nil {
		t.Errorf("Log on disabled logger returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on disabled logger returned error: %v", err)
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "access.log")

	logger, err := NewLogger(path, Rotation{MaxSize: 1, MaxBackups: 1, MaxAge: 1})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	if err := logger.Log(Entry{Time: time.Now(), Peer: "127.0.0.1:1", Method: "GET", Target: "/", Version: "HTTP/1.1", Status: 200, Bytes: 3}); err != nil {
		t.Fatalf("Log returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read access log: %v", err)
	}
	if !strings.Contains(string(data), "\"GET / HTTP/1.1\" 200 3") {
		t.Errorf("Unexpected access log contents: %q", string(data))
	}
}

func TestWriterLoggerConcurrent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = logger.Log(Entry{Time: time.Now(), Peer: "p", Method: "GET", Target: "/a", Version: "HTTP/1.0", Status: 404, Bytes: 49})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("Expected 20 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, "\"GET /a HTTP/1.0\" 404 49") {
			t.Errorf("Interleaved or malformed line: %q", line)
		}
	}
}
