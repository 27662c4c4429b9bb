package response

import (
	"bytes"
	"io"
	"strconv"

	"github.com/niels/mini-http/pkg/request"
)

// Protocol is the version written in every status line
const Protocol = "HTTP/1.1"

// NotFoundBody is the fixed body sent with 404 responses
const NotFoundBody = "<html><body><h1>404 Not Found</h1></body></html>\n"

// Header is a single response header. Headers are kept in a slice so they are
// written in the order they were added.
type Header struct {
	Name  string
	Value string
}

// Response is a status line, ordered headers and a body.
// It is built once per connection and consumed once by a Writer.
type Response struct {
	StatusCode int
	Reason     string
	Headers    []Header
	// Body is streamed after the headers; nil means no body
	Body io.Reader
	// ContentLength is the exact number of body bytes
	ContentLength int64
}

// Get returns the value of the first header with the given name
func (r *Response) Get(name string) string {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// reasons holds the status lines this server emits
var reasons = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
}

// Reason returns the reason phrase for a status code
func Reason(code int) string {
	if reason, ok := reasons[code]; ok {
		return reason
	}
	return "Unknown"
}

// File creates a 200 response that streams size bytes from body
func File(contentType string, size int64, body io.Reader) *Response {
	return &Response{
		StatusCode: 200,
		Reason:     Reason(200),
		Headers: []Header{
			{Name: "Content-Type", Value: contentType},
			{Name: "Content-Length", Value: strconv.FormatInt(size, 10)},
			{Name: "Connection", Value: "close"},
		},
		Body:          body,
		ContentLength: size,
	}
}

// Error creates an error response with a literal body.
// 404 carries a small HTML page, the others are empty; 405 names the allowed method.
func Error(code int) *Response {
	var body []byte
	if code == 404 {
		body = []byte(NotFoundBody)
	}

	resp := &Response{
		StatusCode:    code,
		Reason:        Reason(code),
		ContentLength: int64(len(body)),
	}
	if code == 405 {
		resp.Headers = append(resp.Headers, Header{Name: "Allow", Value: request.MethodGet})
	}
	resp.Headers = append(resp.Headers,
		Header{Name: "Content-Type", Value: "text/html; charset=utf-8"},
		Header{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		Header{Name: "Connection", Value: "close"},
	)
	if len(body) > 0 {
		resp.Body = bytes.NewReader(body)
	}
	return resp
}
