package response

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultChunkSize is the body chunk size used when none is configured
const DefaultChunkSize = 8192

// Writer serializes responses onto a transport
type Writer struct {
	w         io.Writer
	chunkSize int
}

// NewWriter creates a writer that streams bodies in chunks of chunkSize bytes
func NewWriter(w io.Writer, chunkSize int) *Writer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Writer{w: w, chunkSize: chunkSize}
}

// WriteHeader writes the status line, the headers and the blank line that ends them
func (w *Writer) WriteHeader(resp *Response) error {
	var sb strings.Builder
	sb.WriteString(Protocol)
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(resp.StatusCode))
	sb.WriteByte(' ')
	sb.WriteString(resp.Reason)
	sb.WriteString("\r\n")
	for _, h := range resp.Headers {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")

	if _, err := io.WriteString(w.w, sb.String()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// Write writes the full response and returns the number of body bytes sent.
//
// The body is copied in bounded chunks until it is exhausted. A failed read
// or write stops the copy immediately; nothing is retried and the bytes
// already sent stay sent.
func (w *Writer) Write(resp *Response) (int64, error) {
	if err := w.WriteHeader(resp); err != nil {
		return 0, err
	}
	if resp.Body == nil {
		return 0, nil
	}

	// Never send more than was announced, even if the file grew since it was stat'ed
	body := io.LimitReader(resp.Body, resp.ContentLength)
	buf := make([]byte, w.chunkSize)
	var sent int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			written, err := w.w.Write(buf[:n])
			sent += int64(written)
			if err != nil {
				return sent, fmt.Errorf("failed to write body: %w", err)
			}
			if written < n {
				return sent, fmt.Errorf("failed to write body: %w", io.ErrShortWrite)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return sent, fmt.Errorf("failed to read body: %w", readErr)
		}
	}

	if sent != resp.ContentLength {
		return sent, fmt.Errorf("body length %d does not match content length %d", sent, resp.ContentLength)
	}
	return sent, nil
}
