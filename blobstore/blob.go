package blobstore

import (
	"bytes"
	"context"
	"io"
)

// byteBlob serves a Blob from a byte slice that is never written after
// construction.
type byteBlob []byte

func (b byteBlob) Size() int64 { return int64(len(b)) }

func (b byteBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.Size() {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange clamps the range to the blob; a range past the end is empty.
func (b byteBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	var window []byte
	if off >= 0 && off < b.Size() && length > 0 {
		window = b[off:min(off+length, b.Size())]
	}
	return io.NopCloser(bytes.NewReader(window)), nil
}

func (byteBlob) Close() error { return nil }
