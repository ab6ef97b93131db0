package blobstore

import (
	"context"
	"io"
	"path"
	"strings"
)

// Keyspace maps blob names to object keys below a root prefix in a bucket.
// The zero value maps names to themselves.
type Keyspace string

// Key returns the object key of name.
func (ks Keyspace) Key(name string) string {
	if ks == "" {
		return name
	}
	return path.Join(string(ks), name)
}

// ListPrefix returns the object key prefix matching all names that start
// with prefix.
func (ks Keyspace) ListPrefix(prefix string) string {
	if ks == "" {
		return prefix
	}
	return strings.TrimSuffix(string(ks), "/") + "/" + prefix
}

// Name returns the blob name of an object key inside the keyspace.
func (ks Keyspace) Name(key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, string(ks)), "/")
}

// RangeFunc fetches the bytes first through last, both inclusive, of a
// remote object.
type RangeFunc func(ctx context.Context, first, last int64) (io.ReadCloser, error)

// NewRangedBlob returns a Blob of size bytes whose reads are served by
// ranged requests. Close is a no-op; every read owns its response body.
func NewRangedBlob(size int64, fetch RangeFunc) Blob {
	return &rangedBlob{size: size, fetch: fetch}
}

type rangedBlob struct {
	size  int64
	fetch RangeFunc
}

func (b *rangedBlob) Size() int64 { return b.size }

func (b *rangedBlob) Close() error { return nil }

func (b *rangedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	end := min(off+int64(len(p)), b.size)
	body, err := b.fetch(ctx, off, end-1)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:end-off])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (b *rangedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= b.size || length <= 0 {
		return byteBlob(nil).ReadRange(ctx, 0, 0)
	}
	return b.fetch(ctx, off, min(off+length, b.size)-1)
}
