// Package s3store implements pkg/cfdp/filestore.Filestore against an
// S3-compatible object store, for entities that deliver files
// straight into cloud storage rather than a local disk. Each CFDP
// file maps to one S3 object; directories are simulated via key
// prefixes the way most S3-backed filesystems do, since S3 itself has
// no directory concept. Offset writes (CFDP segments can arrive out
// of order) are read-modify-write under a per-key mutex, since S3 has
// no native partial-object write.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cfdpgo/entity/pkg/cfdp/filestore"
)

// Store is a Filestore backed by a single S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// New returns a Store that stores objects in bucket under prefix
// (which may be empty).
func New(client *s3.Client, bucket, prefix string) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		keyLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) objectKey(path string) string {
	clean := strings.TrimPrefix(path, "/")
	if s.prefix == "" {
		return clean
	}
	return s.prefix + "/" + clean
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, filestore.ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *Store) Create(ctx context.Context, path string) error {
	key := s.objectKey(path)
	exists, err := s.FileExists(ctx, path)
	if err != nil {
		return err
	}
	if exists {
		return filestore.NewOpError("create", path, filestore.ErrAlreadyExists)
	}
	if err := s.putObject(ctx, key, nil); err != nil {
		return filestore.NewOpError("create", path, err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	key := s.objectKey(path)
	data, err := s.getObject(ctx, key)
	if err != nil {
		return nil, filestore.NewOpError("open", path, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// s3Writer buffers written bytes and performs the read-modify-write
// against the object on Close, under the per-key mutex.
type s3Writer struct {
	store  *Store
	path   string
	offset uint64
	buf    bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *s3Writer) Close() error {
	key := w.store.objectKey(w.path)
	lock := w.store.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := w.store.getObject(context.Background(), key)
	if err != nil && !errors.Is(err, filestore.ErrNotFound) {
		return filestore.NewOpError("write", w.path, err)
	}
	merged := mergeAt(existing, w.offset, w.buf.Bytes())
	if err := w.store.putObject(context.Background(), key, merged); err != nil {
		return filestore.NewOpError("write", w.path, err)
	}
	return nil
}

func mergeAt(existing []byte, offset uint64, data []byte) []byte {
	end := offset + uint64(len(data))
	if uint64(len(existing)) < end {
		grown := make([]byte, end)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:end], data)
	return existing
}

func (s *Store) Writer(_ context.Context, path string, offset uint64) (io.WriteCloser, error) {
	return &s3Writer{store: s, path: path, offset: offset}, nil
}

func (s *Store) Replace(ctx context.Context, path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return filestore.NewOpError("replace", path, err)
	}
	if err := s.putObject(ctx, s.objectKey(path), data); err != nil {
		return filestore.NewOpError("replace", path, err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, path string, r io.Reader) error {
	key := s.objectKey(path)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.getObject(ctx, key)
	if err != nil && !errors.Is(err, filestore.ErrNotFound) {
		return filestore.NewOpError("append", path, err)
	}
	appended, err := io.ReadAll(r)
	if err != nil {
		return filestore.NewOpError("append", path, err)
	}
	if err := s.putObject(ctx, key, append(existing, appended...)); err != nil {
		return filestore.NewOpError("append", path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	exists, err := s.FileExists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return filestore.NewOpError("delete", path, filestore.ErrNotFound)
	}
	return s.deleteObject(ctx, path)
}

func (s *Store) deleteObject(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.objectKey(path))})
	if err != nil {
		return filestore.NewOpError("delete", path, err)
	}
	return nil
}

func (s *Store) Rename(ctx context.Context, oldPath, newPath string) error {
	data, err := s.getObject(ctx, s.objectKey(oldPath))
	if err != nil {
		return filestore.NewOpError("rename", oldPath, err)
	}
	if err := s.putObject(ctx, s.objectKey(newPath), data); err != nil {
		return filestore.NewOpError("rename", oldPath, err)
	}
	return s.deleteObject(ctx, oldPath)
}

// dirMarker returns the zero-byte key used to represent an explicit
// (possibly empty) directory at path.
func (s *Store) dirMarker(path string) string {
	return s.objectKey(strings.TrimSuffix(path, "/")) + "/"
}

func (s *Store) CreateDirectory(ctx context.Context, path string) error {
	return s.putObject(ctx, s.dirMarker(path), nil)
}

func (s *Store) RemoveDirectory(ctx context.Context, path string) error {
	prefix := s.dirMarker(path)
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket), Prefix: aws.String(prefix), MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return filestore.NewOpError("rmdir", path, err)
	}
	if len(out.Contents) > 1 {
		return filestore.NewOpError("rmdir", path, filestore.ErrDirectoryNotEmpty)
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(prefix)})
	if err != nil {
		return filestore.NewOpError("rmdir", path, err)
	}
	return nil
}

func (s *Store) DenyFile(ctx context.Context, path string) error {
	exists, err := s.FileExists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.deleteObject(ctx, path)
}

func (s *Store) DenyDirectory(ctx context.Context, path string) error {
	prefix := s.dirMarker(path)
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(prefix)})
	if err != nil {
		return filestore.NewOpError("deny-directory", path, err)
	}
	for _, obj := range out.Contents {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: obj.Key}); err != nil {
			return filestore.NewOpError("deny-directory", path, err)
		}
	}
	return nil
}

func (s *Store) FileSize(ctx context.Context, path string) (uint64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.objectKey(path))})
	if err != nil {
		if isNotFound(err) {
			return 0, filestore.NewOpError("stat", path, filestore.ErrNotFound)
		}
		return 0, filestore.NewOpError("stat", path, err)
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return uint64(*out.ContentLength), nil
}

func (s *Store) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.objectKey(path))})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, filestore.NewOpError("stat", path, err)
	}
	return true, nil
}

// ReadAt implements filestore.RangeReader using an S3 ranged GET.
func (s *Store) ReadAt(ctx context.Context, path string, offset uint64, buf []byte) (int, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+uint64(len(buf))-1)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.objectKey(path)), Range: aws.String(rangeHeader),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, filestore.NewOpError("read-at", path, filestore.ErrNotFound)
		}
		return 0, filestore.NewOpError("read-at", path, err)
	}
	defer out.Body.Close()
	return io.ReadFull(out.Body, buf)
}

var (
	_ filestore.Filestore   = (*Store)(nil)
	_ filestore.RangeReader = (*Store)(nil)
)
