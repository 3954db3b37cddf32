// Package filestore defines the Virtual Filestore abstraction CFDP
// handlers use to read and write delivered files, independent of the
// backing storage technology. Concrete backends (localfs, badgerstore,
// s3store) implement Filestore; handlers never import a backend
// package directly.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cfdpgo/entity/internal/bytesize"
)

// Sentinel errors a backend wraps in an OpError. Handlers match
// against these with errors.Is, never against backend-specific types.
var (
	ErrNotFound        = errors.New("filestore: file not found")
	ErrAlreadyExists   = errors.New("filestore: file already exists")
	ErrIsDirectory     = errors.New("filestore: path is a directory")
	ErrNotDirectory    = errors.New("filestore: path is not a directory")
	ErrDirectoryNotEmpty = errors.New("filestore: directory not empty")
	ErrPermission      = errors.New("filestore: permission denied")

	// ErrTooLarge is returned by a size-limited Filestore (see
	// NewSizeLimited) when a write would push a file past the
	// configured maximum object size.
	ErrTooLarge = errors.New("filestore: file exceeds maximum object size")
)

// OpError reports a failed filestore operation. It mirrors the
// donor's PayloadError shape: an operation name, the path it acted
// on, and the wrapped underlying cause.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("filestore: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err with operation and path context.
func NewOpError(op, path string, err error) *OpError {
	return &OpError{Op: op, Path: path, Err: err}
}

// Filestore is the set of native filesystem operations CFDP's
// filestore-request procedures and file delivery reception pipeline
// can perform against a destination's storage, per CCSDS 727.0-B-5
// §4.3 (implemented here as the backend-agnostic surface spec.md's
// Virtual Filestore component requires).
type Filestore interface {
	// Create creates path as an empty file, failing with
	// ErrAlreadyExists if it already exists.
	Create(ctx context.Context, path string) error

	// Open returns a reader positioned at the start of path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Writer returns a writer that appends written bytes starting at
	// offset. Writing past the current end of file extends it.
	Writer(ctx context.Context, path string, offset uint64) (io.WriteCloser, error)

	// Replace overwrites path's full contents from r.
	Replace(ctx context.Context, path string, r io.Reader) error

	// Append appends r's contents to the end of path.
	Append(ctx context.Context, path string, r io.Reader) error

	// Delete removes path. Fails with ErrNotFound if absent, or
	// ErrIsDirectory if path names a directory.
	Delete(ctx context.Context, path string) error

	// Rename moves oldPath to newPath.
	Rename(ctx context.Context, oldPath, newPath string) error

	// CreateDirectory creates path as an empty directory.
	CreateDirectory(ctx context.Context, path string) error

	// RemoveDirectory removes the empty directory at path, failing
	// with ErrDirectoryNotEmpty if it contains entries.
	RemoveDirectory(ctx context.Context, path string) error

	// DenyFile removes path if it exists; unlike Delete it is not an
	// error for path to already be absent (CFDP "deny" semantics).
	DenyFile(ctx context.Context, path string) error

	// DenyDirectory removes the directory at path if it exists,
	// recursively; absence is not an error.
	DenyDirectory(ctx context.Context, path string) error

	// FileSize returns the size in bytes of the file at path.
	FileSize(ctx context.Context, path string) (uint64, error)

	// FileExists reports whether path names an existing file.
	FileExists(ctx context.Context, path string) (bool, error)
}

// RangeReader is implemented by backends that can read a byte range
// without opening a full sequential reader, used by handlers replaying
// retransmission requests against large files. Handlers probe for it
// with AsRangeReader rather than requiring it on every backend.
type RangeReader interface {
	ReadAt(ctx context.Context, path string, offset uint64, buf []byte) (int, error)
}

// AsRangeReader returns fs as a RangeReader if the backend supports
// ranged reads, or nil otherwise. Mirrors the donor's capability-probe
// helpers over io-ish interfaces.
func AsRangeReader(fs Filestore) RangeReader {
	if rr, ok := fs.(RangeReader); ok {
		return rr
	}
	return nil
}

// NewSizeLimited wraps fs so that Writer, Replace, and Append reject
// writes that would push a file past max. A max of 0 disables the
// limit and returns fs unwrapped.
func NewSizeLimited(fs Filestore, max bytesize.ByteSize) Filestore {
	if max == 0 {
		return fs
	}
	return &sizeLimited{Filestore: fs, max: max.Uint64()}
}

// ReadAt delegates to the wrapped backend's RangeReader, if it has
// one, so size-limiting a backend doesn't defeat AsRangeReader probes.
func (s *sizeLimited) ReadAt(ctx context.Context, path string, offset uint64, buf []byte) (int, error) {
	rr := AsRangeReader(s.Filestore)
	if rr == nil {
		return 0, fmt.Errorf("filestore: %T does not support ranged reads", s.Filestore)
	}
	return rr.ReadAt(ctx, path, offset, buf)
}

type sizeLimited struct {
	Filestore
	max uint64
}

func (s *sizeLimited) Writer(ctx context.Context, path string, offset uint64) (io.WriteCloser, error) {
	w, err := s.Filestore.Writer(ctx, path, offset)
	if err != nil {
		return nil, err
	}
	return &limitedWriter{WriteCloser: w, path: path, written: offset, max: s.max}, nil
}

func (s *sizeLimited) Replace(ctx context.Context, path string, r io.Reader) error {
	return s.Filestore.Replace(ctx, path, &limitedReader{Reader: r, path: path, max: s.max})
}

func (s *sizeLimited) Append(ctx context.Context, path string, r io.Reader) error {
	existing, err := s.Filestore.FileSize(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.Filestore.Append(ctx, path, &limitedReader{Reader: r, path: path, written: existing, max: s.max})
}

type limitedWriter struct {
	io.WriteCloser
	path    string
	written uint64
	max     uint64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.written+uint64(len(p)) > w.max {
		return 0, NewOpError("write", w.path, ErrTooLarge)
	}
	n, err := w.WriteCloser.Write(p)
	w.written += uint64(n)
	return n, err
}

type limitedReader struct {
	io.Reader
	path    string
	written uint64
	max     uint64
}

// Read lets the source exhaust exactly up to max bytes without error:
// it only reports ErrTooLarge once the source proves it has more data
// to give after max has already been reached, rather than treating
// "written == max" itself as a failure.
func (r *limitedReader) Read(p []byte) (int, error) {
	if r.written < r.max {
		if remaining := r.max - r.written; uint64(len(p)) > remaining {
			p = p[:remaining]
		}
		n, err := r.Reader.Read(p)
		r.written += uint64(n)
		return n, err
	}
	n, err := r.Reader.Read(p)
	if n > 0 {
		return 0, NewOpError("read", r.path, ErrTooLarge)
	}
	return n, err
}
