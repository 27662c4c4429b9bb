package request

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrMalformed is returned when the request line cannot be parsed
var ErrMalformed = errors.New("malformed request line")

// MethodGet is the only retrieval method the server supports
const MethodGet = "GET"

// Request is the parsed request line. It is never modified after Parse returns.
type Request struct {
	Method  string
	Target  string // raw, still percent-encoded
	Version string
}

// Limits bounds the size of each request-line token. A zero field disables that check.
type Limits struct {
	MaxMethod  int
	MaxTarget  int
	MaxVersion int
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		MaxMethod:  15,
		MaxTarget:  1023,
		MaxVersion: 31,
	}
}

// Parse parses the request line at the start of buf.
//
// Only the first line is considered; header lines and any body are ignored.
// The line must split on whitespace into exactly three tokens.
func Parse(buf []byte, limits Limits) (*Request, error) {
	line := buf
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	fields := bytes.Fields(line)
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: expected 3 tokens, got %d", ErrMalformed, len(fields))
	}

	if err := checkLen("method", fields[0], limits.MaxMethod); err != nil {
		return nil, err
	}
	if err := checkLen("target", fields[1], limits.MaxTarget); err != nil {
		return nil, err
	}
	if err := checkLen("version", fields[2], limits.MaxVersion); err != nil {
		return nil, err
	}

	return &Request{
		Method:  string(fields[0]),
		Target:  string(fields[1]),
		Version: string(fields[2]),
	}, nil
}

// IsRetrieval reports whether the request uses the supported retrieval method
func (r *Request) IsRetrieval() bool {
	return r.Method == MethodGet
}

// String returns the request line without the trailing CRLF
func (r *Request) String() string {
	return r.Method + " " + r.Target + " " + r.Version
}

func checkLen(name string, token []byte, max int) error {
	if max > 0 && len(token) > max {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrMalformed, name, len(token), max)
	}
	return nil
}
