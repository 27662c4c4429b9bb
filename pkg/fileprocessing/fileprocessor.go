package fileprocessing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Lookup outcomes. Both are ordinary results of a filesystem query, not faults.
var (
	ErrNotFound   = errors.New("file not found")
	ErrNotRegular = errors.New("not a regular file")
)

// Metadata describes a file as seen at lookup time
type Metadata struct {
	Size      int64
	IsRegular bool
}

// Stat queries the filesystem for path without opening it
func Stat(path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	return metadataOf(info), nil
}

// OpenRegular opens path for reading if, and only if, it is a regular file.
//
// The path is stat'ed before it is opened so that FIFOs and devices are never
// opened (opening a FIFO blocks until a writer appears). The open file is
// stat'ed again to catch a swap between the two calls. The caller owns the
// returned file and must close it.
func OpenRegular(path string) (*os.File, Metadata, error) {
	meta, err := Stat(path)
	if err != nil {
		return nil, Metadata{}, err
	}
	if !meta.IsRegular {
		return nil, meta, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, Metadata{}, fmt.Errorf("failed to stat open file %s: %w", path, err)
	}
	meta = metadataOf(info)
	if !meta.IsRegular {
		file.Close()
		return nil, meta, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	return file, meta, nil
}

func metadataOf(info fs.FileInfo) Metadata {
	return Metadata{
		Size:      info.Size(),
		IsRegular: info.Mode().IsRegular(),
	}
}
