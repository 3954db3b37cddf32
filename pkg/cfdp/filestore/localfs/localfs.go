// Package localfs implements pkg/cfdp/filestore.Filestore backed by
// the host operating system's filesystem. It is the default backend
// for a standalone CFDP entity.
package localfs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
)

// Store is a Filestore rooted at a base directory. All paths passed to
// its methods are treated as relative to Root and are cleaned so they
// cannot escape it: leading ".." elements are dropped, not rejected.
type Store struct {
	Root string
}

// New returns a Store rooted at root. root must already exist.
func New(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + path)
	full := filepath.Join(s.Root, cleaned)
	return full, nil
}

func wrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return filestore.NewOpError(op, path, filestore.ErrNotFound)
	case errors.Is(err, os.ErrExist):
		return filestore.NewOpError(op, path, filestore.ErrAlreadyExists)
	case errors.Is(err, os.ErrPermission):
		return filestore.NewOpError(op, path, filestore.ErrPermission)
	default:
		return filestore.NewOpError(op, path, err)
	}
}

func (s *Store) Create(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return wrapErr("create", path, err)
	}
	return f.Close()
}

func (s *Store) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, wrapErr("open", path, err)
	}
	return f, nil
}

func (s *Store) Writer(_ context.Context, path string, offset uint64) (io.WriteCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, wrapErr("write", path, err)
	}
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		f.Close()
		return nil, wrapErr("write", path, err)
	}
	return f, nil
}

func (s *Store) Replace(ctx context.Context, path string, r io.Reader) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return wrapErr("replace", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return wrapErr("replace", path, err)
	}
	return nil
}

func (s *Store) Append(_ context.Context, path string, r io.Reader) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return wrapErr("append", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return wrapErr("append", path, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	info, statErr := os.Stat(full)
	if statErr == nil && info.IsDir() {
		return filestore.NewOpError("delete", path, filestore.ErrIsDirectory)
	}
	if err := os.Remove(full); err != nil {
		return wrapErr("delete", path, err)
	}
	return nil
}

func (s *Store) Rename(_ context.Context, oldPath, newPath string) error {
	oldFull, err := s.resolve(oldPath)
	if err != nil {
		return err
	}
	newFull, err := s.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return wrapErr("rename", oldPath, err)
	}
	return nil
}

func (s *Store) CreateDirectory(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Mkdir(full, 0755); err != nil {
		return wrapErr("mkdir", path, err)
	}
	return nil
}

func (s *Store) RemoveDirectory(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return wrapErr("rmdir", path, err)
	}
	if len(entries) > 0 {
		return filestore.NewOpError("rmdir", path, filestore.ErrDirectoryNotEmpty)
	}
	if err := os.Remove(full); err != nil {
		return wrapErr("rmdir", path, err)
	}
	return nil
}

func (s *Store) DenyFile(ctx context.Context, path string) error {
	err := s.Delete(ctx, path)
	if err != nil && errors.Is(err, filestore.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Store) DenyDirectory(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return wrapErr("deny-directory", path, err)
	}
	return nil
}

func (s *Store) FileSize(_ context.Context, path string) (uint64, error) {
	full, err := s.resolve(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, wrapErr("stat", path, err)
	}
	return uint64(info.Size()), nil
}

func (s *Store) FileExists(_ context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, wrapErr("stat", path, err)
}

// ReadAt implements filestore.RangeReader.
func (s *Store) ReadAt(_ context.Context, path string, offset uint64, buf []byte) (int, error) {
	full, err := s.resolve(path)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(full)
	if err != nil {
		return 0, wrapErr("read-at", path, err)
	}
	defer f.Close()
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return n, wrapErr("read-at", path, err)
	}
	return n, nil
}

var _ filestore.Filestore = (*Store)(nil)
var _ filestore.RangeReader = (*Store)(nil)
