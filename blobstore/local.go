package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
)

// LocalStore implements BlobStore using the local file system.
//
// Reads are served from read-only memory mappings. Writes go to a temporary
// file in the same directory that is renamed into place, so readers never see
// a partial blob.
type LocalStore struct {
	root string
}

const tmpPrefix = ".tmp-"

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps a blob read-only into memory.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("blobstore: %s is a directory", name)
	}
	if fi.Size() == 0 {
		return &localBlob{}, nil
	}
	if fi.Size() > math.MaxInt {
		return nil, fmt.Errorf("blobstore: %s is too large to map", name)
	}

	data, unmap, err := mapFile(f, int(fi.Size()))
	if err != nil {
		return nil, fmt.Errorf("blobstore: map %s: %w", name, err)
	}
	return &localBlob{byteBlob: data, unmap: unmap}, nil
}

// Put writes data to a temporary file next to the target, syncs it and
// renames it into place.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := s.path(name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), tmpPrefix+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Delete removes the file; a missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the root and returns the slash-separated names starting with
// prefix. In-flight temporary files are not listed; a missing root lists
// nothing.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	walk := func(p string, d fs.DirEntry, err error) error {
		switch {
		case errors.Is(err, fs.ErrNotExist) && p == s.root:
			return fs.SkipAll
		case err != nil:
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case d.IsDir(), strings.HasPrefix(d.Name(), tmpPrefix):
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	}
	if err := filepath.WalkDir(s.root, walk); err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// localBlob serves reads from a memory mapping. Reads after Close fail with
// os.ErrClosed.
type localBlob struct {
	byteBlob
	unmap  func() error
	closed atomic.Bool
}

func (b *localBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if b.closed.Load() {
		return 0, os.ErrClosed
	}
	return b.byteBlob.ReadAt(ctx, p, off)
}

func (b *localBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if b.closed.Load() {
		return nil, os.ErrClosed
	}
	return b.byteBlob.ReadRange(ctx, off, length)
}

func (b *localBlob) Close() error {
	if b.closed.Swap(true) || b.unmap == nil {
		return nil
	}
	return b.unmap()
}
