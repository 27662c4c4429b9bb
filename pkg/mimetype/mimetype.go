package mimetype

import "strings"

// DefaultType is returned for files without a known extension
const DefaultType = "application/octet-stream"

// types maps a file extension (without the dot) to its content type.
// Matching is case-sensitive.
var types = map[string]string{
	"html": "text/html; charset=utf-8",
	"htm":  "text/html; charset=utf-8",
	"css":  "text/css",
	"js":   "application/javascript",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"txt":  "text/plain; charset=utf-8",
	"json": "application/json",
	"svg":  "image/svg+xml",
}

// Resolve returns the content type for path based on the extension of its
// final segment. It never fails; unknown or missing extensions yield DefaultType.
func Resolve(path string) string {
	name := path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return DefaultType
	}

	if contentType, ok := types[name[dot+1:]]; ok {
		return contentType
	}
	return DefaultType
}
