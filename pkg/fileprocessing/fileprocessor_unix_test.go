//go:build unix

package fileprocessing

import (
	"errors"
	"path/filepath"
	"syscall"
	"testing"
)

func TestOpenRegularFIFO(t *testing.T) {
	fifoPath := filepath.Join(t.TempDir(), "pipe")
	if err := syscall.Mkfifo(fifoPath, 0644); err != nil {
		t.Skipf("mkfifo not supported: %v", err)
	}

	// Must return without blocking on the open
	if _, _, err := OpenRegular(fifoPath); !errors.Is(err, ErrNotRegular) {
		t.Errorf("Expected ErrNotRegular for FIFO, got: %v", err)
	}
}
