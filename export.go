package vecsim

import (
	"context"
	"io"

	"github.com/hupe1980/vecsim/codec"
	"github.com/hupe1980/vecsim/snapshot"
)

// Export writes every record to w in the snapshot format, in ascending id
// order, using the engine's codec and compression.
//
// Vectors are written bit-exact. The graph is not exported; Import rebuilds
// it. Export holds the read lock, so concurrent queries proceed.
func (e *Engine) Export(ctx context.Context, w io.Writer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	count := 0
	err := ctx.Err()
	if err == nil {
		var h snapshot.Header
		h, err = snapshot.Write(w, e.store.Dimension(), e.opts.metric, e.store.Records(), func(o *snapshot.WriteOptions) {
			o.Codec = e.opts.codec
			o.Compression = e.opts.compression
		})
		count = h.Count
	}

	e.opts.logger.LogExport(ctx, count, err)
	return err
}

// Import creates an engine from a snapshot written by Export.
//
// The snapshot's dimension, metric, codec and compression are applied first
// and opts may override them; a conflicting WithDimension fails with
// ErrDimensionMismatch. The graph for the default metric is rebuilt before
// Import returns. When ctx expires during the rebuild Import fails with the
// context error.
func Import(ctx context.Context, r io.Reader, opts ...Option) (*Engine, error) {
	h, records, err := snapshot.Read(r)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithDimension(h.Dimension),
		WithMetric(h.Metric),
		WithCompression(h.Compression),
	}
	if c, ok := codec.ByName(h.Codec); ok {
		base = append(base, WithCodec(c))
	}

	e, err := New(append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = func() error {
		for _, rec := range records {
			if _, err := e.store.Put(rec.ID, rec.Vector, rec.Metadata); err != nil {
				return err
			}
		}
		// The rebuild below absorbs every insert.
		e.store.Discard()

		if e.store.Dimension() == 0 {
			return nil
		}
		return e.rebuildLocked(ctx, e.opts.metric)
	}()

	e.opts.logger.LogImport(ctx, len(records), err)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Importer adapts Import to snapshot.Load and snapshot.LoadCurrent.
//
// Example:
//
//	engine, err := snapshot.LoadCurrent(ctx, store, ptr, vecsim.Importer())
func Importer(opts ...Option) func(context.Context, io.Reader) (*Engine, error) {
	return func(ctx context.Context, r io.Reader) (*Engine, error) {
		return Import(ctx, r, opts...)
	}
}
