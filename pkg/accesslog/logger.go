package accesslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

// Entry is one answered request
type Entry struct {
	Time    time.Time
	Peer    string
	Method  string
	Target  string
	Version string
	Status  int
	Bytes   int64
}

// Rotation controls when the access log file is rotated
type Rotation struct {
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Logger writes one line per answered request. A Logger created without a
// path discards everything.
type Logger struct {
	out     io.WriteCloser
	enabled bool
	mu      sync.Mutex
}

// NewLogger creates an access logger writing to path with lumberjack rotation
func NewLogger(path string, rotation Rotation) (*Logger, error) {
	if path == "" {
		return &Logger{enabled: false}, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create access log directory: %w", err)
		}
	}

	return &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    rotation.MaxSize,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAge,
			Compress:   rotation.Compress,
		},
		enabled: true,
	}, nil
}

// NewWriterLogger creates an access logger writing to w
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{out: nopCloser{w}, enabled: true}
}

// Enabled reports whether entries are written anywhere
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Log writes a single entry
func (l *Logger) Log(entry Entry) error {
	if !l.enabled || l.out == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := io.WriteString(l.out, Format(entry))
	return err
}

// Close closes the underlying file
func (l *Logger) Close() error {
	if l.out != nil {
		return l.out.Close()
	}
	return nil
}

// Format renders an entry as a single line
func Format(entry Entry) string {
	method, target, version := entry.Method, entry.Target, entry.Version
	if method == "" {
		method = "-"
	}
	if target == "" {
		target = "-"
	}
	if version == "" {
		version = "-"
	}

	return fmt.Sprintf("%s %s \"%s %s %s\" %d %d\n",
		entry.Time.Format(time.RFC3339), entry.Peer, method, target, version, entry.Status, entry.Bytes)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
