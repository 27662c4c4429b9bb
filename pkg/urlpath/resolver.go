// Package urlpath turns a raw request target into a filesystem path that is
// confined to the served root.
//
// The target is percent-decoded, split into segments and collapsed on a stack:
// a ".." pops, an empty or "." segment is dropped, anything else is pushed.
// Raw ".." segments never reach the filesystem, so no OS-level resolution can
// leave the root.
package urlpath

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned when a target cannot be mapped to a path under the root
var ErrInvalidPath = errors.New("invalid path")

// DefaultIndex is served for the root target and for targets that collapse to nothing
const DefaultIndex = "index.html"

// Resolver maps request targets to paths beneath Root
type Resolver struct {
	// Root is the served root directory; every resolved path starts with it
	Root string
	// Index is the file name used when the target names the root itself
	Index string
	// MaxLen bounds the length of the resolved path; 0 disables the check
	MaxLen int
}

// NewResolver creates a resolver for the given root
func NewResolver(root, index string, maxLen int) *Resolver {
	if index == "" {
		index = DefaultIndex
	}
	return &Resolver{Root: root, Index: index, MaxLen: maxLen}
}

// Resolve percent-decodes rawTarget and returns the root-confined path it names
func (r *Resolver) Resolve(rawTarget string) (string, error) {
	decoded := Decode(rawTarget)
	if strings.IndexByte(decoded, 0) >= 0 {
		return "", fmt.Errorf("%w: target contains a NUL byte", ErrInvalidPath)
	}

	segments := Segments(decoded)
	if len(segments) == 0 {
		segments = []string{r.index()}
	}

	resolved := r.prefix() + strings.Join(segments, "/")
	if r.MaxLen > 0 && len(resolved) > r.MaxLen {
		return "", fmt.Errorf("%w: resolved path is %d bytes, limit is %d", ErrInvalidPath, len(resolved), r.MaxLen)
	}
	return resolved, nil
}

// prefix returns the string every resolved path begins with
func (r *Resolver) prefix() string {
	root := strings.TrimRight(r.Root, "/")
	if root == "" && r.Root == "" {
		root = "."
	}
	return root + "/"
}

func (r *Resolver) index() string {
	if r.Index == "" {
		return DefaultIndex
	}
	return r.Index
}

// Segments splits a decoded target on '/' and collapses it.
// Empty and "." segments are dropped; ".." removes the previous segment and is
// ignored when there is none. The input is not modified.
func Segments(decoded string) []string {
	stack := make([]string, 0, strings.Count(decoded, "/")+1)
	for _, segment := range strings.Split(decoded, "/") {
		switch segment {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, segment)
		}
	}
	return stack
}
