package response

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// failingWriter accepts limit bytes and then fails every write
type failingWriter struct {
	buf   bytes.Buffer
	limit int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	room := f.limit - f.buf.Len()
	if room <= 0 {
		return 0, errors.New("connection reset by peer")
	}
	if len(p) > room {
		f.buf.Write(p[:room])
		return room, errors.New("connection reset by peer")
	}
	return f.buf.Write(p)
}

func TestWriteFileResponse(t *testing.T) {
	content := []byte("<h1>hi</h1")
	var out bytes.Buffer

	sent, err := NewWriter(&out, 0).Write(File("text/html; charset=utf-8", int64(len(content)), bytes.NewReader(content)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sent != int64(len(content)) {
		t.Errorf("Expected %d body bytes, got %d", len(content), sent)
	}

	expected := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"Content-Length: 10\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		"<h1>hi</h1"
	if out.String() != expected {
		t.Errorf("Unexpected response:\n%q\nwant:\n%q", out.String(), expected)
	}
}

func TestWriteChunkBoundaries(t *testing.T) {
	content := make([]byte, 500)
	for i := range content {
		content[i] = byte(i * 7)
	}

	for _, chunkSize := range []int{1, 7, 64, 499, 500, 501, 8192} {
		t.Run(fmt.Sprintf("chunk=%d", chunkSize), func(t *testing.T) {
			var out bytes.Buffer
			resp := File("application/javascript", int64(len(content)), bytes.NewReader(content))
			if _, err := NewWriter(&out, chunkSize).Write(resp); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			parts := strings.SplitN(out.String(), "\r\n\r\n", 2)
			if len(parts) != 2 {
				t.Fatalf("Response has no header terminator: %q", out.String())
			}
			if !strings.Contains(parts[0], "Content-Length: 500") {
				t.Errorf("Expected Content-Length: 500 in %q", parts[0])
			}
			if !bytes.Equal([]byte(parts[1]), content) {
				t.Errorf("Body differs from source for chunk size %d", chunkSize)
			}
		})
	}
}

func TestWriteErrorResponses(t *testing.T) {
	testCases := []struct {
		code     int
		expected string
	}{
		{400, "HTTP/1.1 400 Bad Request\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"},
		{403, "HTTP/1.1 403 Forbidden\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"},
		{405, "HTTP/1.1 405 Method Not Allowed\r\nAllow: GET\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"},
		{404, "HTTP/1.1 404 Not Found\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: " + fmt.Sprint(len(NotFoundBody)) + "\r\nConnection: close\r\n\r\n" + NotFoundBody},
	}

	for _, tc := range testCases {
		t.Run(Reason(tc.code), func(t *testing.T) {
			var out bytes.Buffer
			if _, err := NewWriter(&out, 16).Write(Error(tc.code)); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if out.String() != tc.expected {
				t.Errorf("Unexpected response:\n%q\nwant:\n%q", out.String(), tc.expected)
			}
		})
	}
}

func TestWriteAbortsOnTransportFailure(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 1000)
	resp := File("text/plain; charset=utf-8", int64(len(content)), bytes.NewReader(content))

	out := &failingWriter{limit: 200}
	sent, err := NewWriter(out, 64).Write(resp)
	if err == nil {
		t.Fatal("Expected an error from a failing transport")
	}
	if sent >= int64(len(content)) {
		t.Errorf("Expected a truncated body, sent %d bytes", sent)
	}
}

func TestWriteHeaderFailure(t *testing.T) {
	out := &failingWriter{limit: 0}
	if _, err := NewWriter(out, 64).Write(Error(400)); err == nil {
		t.Fatal("Expected an error when the header cannot be written")
	}
}

func TestWriteShortBody(t *testing.T) {
	// A body shorter than announced is reported, the bytes sent stay sent
	var out bytes.Buffer
	resp := File("text/plain; charset=utf-8", 10, strings.NewReader("short"))
	sent, err := NewWriter(&out, 4).Write(resp)
	if err == nil {
		t.Fatal("Expected an error for a short body")
	}
	if sent != 5 {
		t.Errorf("Expected 5 bytes sent, got %d", sent)
	}
}

func TestWriteNeverExceedsContentLength(t *testing.T) {
	var out bytes.Buffer
	resp := File("text/plain; charset=utf-8", 4, strings.NewReader("grown file"))
	sent, err := NewWriter(&out, 3).Write(resp)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sent != 4 || !strings.HasSuffix(out.String(), "\r\n\r\ngrow") {
		t.Errorf("Expected exactly 4 body bytes, got %d (%q)", sent, out.String())
	}
}

func TestResponseGet(t *testing.T) {
	resp := Error(405)
	if resp.Get("Allow") != "GET" {
		t.Errorf("Expected Allow: GET, got %q", resp.Get("Allow"))
	}
	if resp.Get("X-Missing") != "" {
		t.Errorf("Expected empty value for a missing header")
	}
}
