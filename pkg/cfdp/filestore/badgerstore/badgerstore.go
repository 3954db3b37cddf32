// Package badgerstore implements pkg/cfdp/filestore.Filestore on top
// of an embedded BadgerDB instance, for entities that want a single
// self-contained data file instead of a directory tree on the host
// filesystem.
//
// Each file is stored as a set of chunk records keyed
// "chunk\x00path\x00" followed by the chunk's 8-byte big-endian
// offset, each holding that chunk's raw bytes, plus a "file\x00path"
// record carrying the current file size. Directories are tracked as a
// "dir\x00<path>" marker key; CFDP never needs to list directory
// contents. File operations do not consult the directory markers.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
)

// Store is a Filestore backed by a BadgerDB instance.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB database at dir and
// returns a Store backed by it.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func fileKey(path string) []byte   { return []byte("file\x00" + path) }
func dirKey(path string) []byte    { return []byte("dir\x00" + path) }
func chunkPrefix(path string) []byte { return []byte("chunk\x00" + path + "\x00") }

func chunkKey(path string, offset uint64) []byte {
	buf := make([]byte, len(chunkPrefix(path))+8)
	n := copy(buf, chunkPrefix(path))
	binary.BigEndian.PutUint64(buf[n:], offset)
	return buf
}

func (s *Store) sizeOf(path string) (uint64, bool, error) {
	var size uint64
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			size = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	return size, found, err
}

func (s *Store) setSize(txn *badger.Txn, path string, size uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, size)
	return txn.Set(fileKey(path), buf)
}

func (s *Store) Create(_ context.Context, path string) error {
	_, found, err := s.sizeOf(path)
	if err != nil {
		return filestore.NewOpError("create", path, err)
	}
	if found {
		return filestore.NewOpError("create", path, filestore.ErrAlreadyExists)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return s.setSize(txn, path, 0)
	})
}

func (s *Store) writeChunk(path string, offset uint64, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(chunkKey(path, offset), append([]byte(nil), data...)); err != nil {
			return err
		}
		size, _, err := s.sizeOf(path)
		if err != nil {
			return err
		}
		end := offset + uint64(len(data))
		if end > size {
			size = end
		}
		return s.setSize(txn, path, size)
	})
}

// Writer buffers writes in memory and flushes them as a single chunk
// on Close, keyed at the original offset. This keeps the chunk
// layout simple at the cost of holding one write's worth of data in
// memory, acceptable for CFDP's segment-sized writes.
type badgerWriter struct {
	store  *Store
	path   string
	offset uint64
	buf    bytes.Buffer
}

func (w *badgerWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *badgerWriter) Close() error {
	if w.buf.Len() == 0 {
		return nil
	}
	return w.store.writeChunk(w.path, w.offset, w.buf.Bytes())
}

func (s *Store) Writer(_ context.Context, path string, offset uint64) (io.WriteCloser, error) {
	return &badgerWriter{store: s, path: path, offset: offset}, nil
}

func (s *Store) Replace(ctx context.Context, path string, r io.Reader) error {
	if err := s.DenyFile(ctx, path); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return filestore.NewOpError("replace", path, err)
	}
	return s.writeChunk(path, 0, data)
}

func (s *Store) Append(_ context.Context, path string, r io.Reader) error {
	size, _, err := s.sizeOf(path)
	if err != nil {
		return filestore.NewOpError("append", path, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return filestore.NewOpError("append", path, err)
	}
	return s.writeChunk(path, size, data)
}

func (s *Store) Delete(_ context.Context, path string) error {
	_, found, err := s.sizeOf(path)
	if err != nil {
		return filestore.NewOpError("delete", path, err)
	}
	if !found {
		return filestore.NewOpError("delete", path, filestore.ErrNotFound)
	}
	return s.deleteAll(path)
}

func (s *Store) deleteAll(path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := chunkPrefix(path)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return txn.Delete(fileKey(path))
	})
}

func (s *Store) Rename(ctx context.Context, oldPath, newPath string) error {
	size, found, err := s.sizeOf(oldPath)
	if err != nil {
		return filestore.NewOpError("rename", oldPath, err)
	}
	if !found {
		return filestore.NewOpError("rename", oldPath, filestore.ErrNotFound)
	}
	r, err := s.Open(ctx, oldPath)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := s.Replace(ctx, newPath, r); err != nil {
		return err
	}
	_ = size
	return s.deleteAll(oldPath)
}

func (s *Store) CreateDirectory(_ context.Context, path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(dirKey(path))
		if err == nil {
			return filestore.NewOpError("mkdir", path, filestore.ErrAlreadyExists)
		}
		return txn.Set(dirKey(path), []byte{1})
	})
}

func (s *Store) RemoveDirectory(_ context.Context, path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(dirKey(path)); errors.Is(err, badger.ErrKeyNotFound) {
			return filestore.NewOpError("rmdir", path, filestore.ErrNotFound)
		}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		childPrefix := []byte("dir\x00" + path + "/")
		for it.Seek(childPrefix); it.ValidForPrefix(childPrefix); it.Next() {
			return filestore.NewOpError("rmdir", path, filestore.ErrDirectoryNotEmpty)
		}
		return txn.Delete(dirKey(path))
	})
}

func (s *Store) DenyFile(ctx context.Context, path string) error {
	_, found, err := s.sizeOf(path)
	if err != nil {
		return filestore.NewOpError("deny-file", path, err)
	}
	if !found {
		return nil
	}
	return s.deleteAll(path)
}

func (s *Store) DenyDirectory(_ context.Context, path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("dir\x00" + path)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) FileSize(_ context.Context, path string) (uint64, error) {
	size, found, err := s.sizeOf(path)
	if err != nil {
		return 0, filestore.NewOpError("stat", path, err)
	}
	if !found {
		return 0, filestore.NewOpError("stat", path, filestore.ErrNotFound)
	}
	return size, nil
}

func (s *Store) FileExists(_ context.Context, path string) (bool, error) {
	_, found, err := s.sizeOf(path)
	if err != nil {
		return false, filestore.NewOpError("stat", path, err)
	}
	return found, nil
}

// chunkReader reconstructs the full byte stream for path by iterating
// chunks in offset order.
type chunkReader struct {
	store   *Store
	path    string
	chunks  []chunkSpan
	current int
	off     int
}

type chunkSpan struct {
	offset uint64
	data   []byte
}

func (s *Store) loadChunks(path string) ([]chunkSpan, error) {
	var spans []chunkSpan
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := chunkPrefix(path)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			offset := binary.BigEndian.Uint64(key[len(prefix):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			spans = append(spans, chunkSpan{offset: offset, data: val})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].offset < spans[j].offset })
	return spans, nil
}

func (r *chunkReader) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if r.current >= len(r.chunks) {
			if total == 0 {
				return 0, io.EOF
			}
			return total, nil
		}
		span := r.chunks[r.current]
		n := copy(p[total:], span.data[r.off:])
		total += n
		r.off += n
		if r.off >= len(span.data) {
			r.current++
			r.off = 0
		}
	}
	return total, nil
}

func (r *chunkReader) Close() error { return nil }

func (s *Store) Open(_ context.Context, path string) (io.ReadCloser, error) {
	_, found, err := s.sizeOf(path)
	if err != nil {
		return nil, filestore.NewOpError("open", path, err)
	}
	if !found {
		return nil, filestore.NewOpError("open", path, filestore.ErrNotFound)
	}
	chunks, err := s.loadChunks(path)
	if err != nil {
		return nil, filestore.NewOpError("open", path, err)
	}
	return &chunkReader{store: s, path: path, chunks: chunks}, nil
}

// ReadAt implements filestore.RangeReader by reconstructing the whole
// file and slicing it; acceptable for CFDP segment sizes.
func (s *Store) ReadAt(ctx context.Context, path string, offset uint64, buf []byte) (int, error) {
	r, err := s.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	if _, err := io.CopyN(io.Discard, r, int64(offset)); err != nil && !errors.Is(err, io.EOF) {
		return 0, filestore.NewOpError("read-at", path, err)
	}
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

var (
	_ filestore.Filestore   = (*Store)(nil)
	_ filestore.RangeReader = (*Store)(nil)
)
