package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/vecsim/blobstore"
)

const (
	// CurrentName is the blob BlobPointer keeps the current snapshot name in.
	CurrentName = "CURRENT"

	// Prefix is the name prefix of published snapshots.
	Prefix = "snapshots/"

	// Extension is the name suffix of published snapshots.
	Extension = ".vsim"
)

// Exporter writes a snapshot of itself to w.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

// Pointer tracks the name of the current snapshot.
type Pointer interface {
	// Current returns the current snapshot name, or an error satisfying
	// errors.Is(err, blobstore.ErrNotFound) when none was committed.
	Current(ctx context.Context) (string, error)

	// Commit makes name the current snapshot.
	Commit(ctx context.Context, name string) error
}

// Save exports src into the blob name.
func Save(ctx context.Context, bs blobstore.BlobStore, name string, src Exporter) error {
	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		return err
	}
	if err := bs.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("snapshot: put %q: %w", name, err)
	}
	return nil
}

// Load reads the blob name and decodes it with fn.
func Load[T any](ctx context.Context, bs blobstore.BlobStore, name string, fn func(context.Context, io.Reader) (T, error)) (T, error) {
	data, err := blobstore.ReadAll(ctx, bs, name)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("snapshot: read %q: %w", name, err)
	}
	return fn(ctx, bytes.NewReader(data))
}

// Publish saves src under a fresh time-ordered name and commits it to ptr.
// The blob is removed again when the commit fails.
func Publish(ctx context.Context, bs blobstore.BlobStore, ptr Pointer, src Exporter) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	name := Prefix + id.String() + Extension

	if err := Save(ctx, bs, name, src); err != nil {
		return "", err
	}
	if err := ptr.Commit(ctx, name); err != nil {
		_ = bs.Delete(context.WithoutCancel(ctx), name)
		return "", err
	}
	return name, nil
}

// LoadCurrent loads the snapshot ptr points at.
func LoadCurrent[T any](ctx context.Context, bs blobstore.BlobStore, ptr Pointer, fn func(context.Context, io.Reader) (T, error)) (T, error) {
	name, err := ptr.Current(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Load(ctx, bs, name, fn)
}

// Prune deletes published snapshots except the current one and the keep
// most recent ones. It returns the deleted names.
func Prune(ctx context.Context, bs blobstore.BlobStore, ptr Pointer, keep int) ([]string, error) {
	current, err := ptr.Current(ctx)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return nil, err
	}

	names, err := bs.List(ctx, Prefix)
	if err != nil {
		return nil, err
	}
	names = slices.DeleteFunc(names, func(n string) bool { return !strings.HasSuffix(n, Extension) })

	// Version 7 UUIDs sort by creation time.
	slices.Sort(names)
	if keep < 0 {
		keep = 0
	}
	cut := max(len(names)-keep, 0)

	var deleted []string
	for _, name := range names[:cut] {
		if name == current {
			continue
		}
		if err := bs.Delete(ctx, name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}

// BlobPointer keeps the current snapshot name in the CURRENT blob of a store.
// Commit is last-writer-wins; use s3.CommitStore when several processes
// publish to the same location.
type BlobPointer struct {
	bs blobstore.BlobStore
}

// NewBlobPointer returns a Pointer backed by bs.
func NewBlobPointer(bs blobstore.BlobStore) *BlobPointer {
	return &BlobPointer{bs: bs}
}

// Current implements Pointer.
func (p *BlobPointer) Current(ctx context.Context) (string, error) {
	data, err := blobstore.ReadAll(ctx, p.bs, CurrentName)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", blobstore.ErrNotFound
	}
	return name, nil
}

// Commit implements Pointer.
func (p *BlobPointer) Commit(ctx context.Context, name string) error {
	return p.bs.Put(ctx, CurrentName, []byte(name+"\n"))
}
