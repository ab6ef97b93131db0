package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/embed"
)

// DefaultBatchSize is the number of texts sent to the provider per request.
const DefaultBatchSize = 100

// IngestReport summarizes an Ingest call.
type IngestReport struct {
	Indexed              int
	SkippedExisting      int
	SkippedNoDescription int
	Took                 time.Duration
}

// Ingester embeds products and stores them in an Index.
type Ingester struct {
	index    Index
	provider embed.Provider
	opts     IngestOptions
}

// IngestOptions configures an Ingester.
type IngestOptions struct {
	// BatchSize is the number of texts per provider request.
	BatchSize int

	// Concurrency bounds the number of provider requests in flight.
	Concurrency int

	// SkipExisting leaves products whose id is already indexed untouched.
	SkipExisting bool

	// Template renders the embedding text.
	Template TextTemplate

	Logger *vecsim.Logger
}

// NewIngester creates an Ingester. By default it sends batches of 100, one at
// a time, and skips products that are already indexed.
func NewIngester(index Index, provider embed.Provider, optFns ...func(o *IngestOptions)) *Ingester {
	opts := IngestOptions{
		BatchSize:    DefaultBatchSize,
		Concurrency:  1,
		SkipExisting: true,
		Template:     DefaultTextTemplate(),
		Logger:       vecsim.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = vecsim.NoopLogger()
	}

	return &Ingester{index: index, provider: provider, opts: opts}
}

// Ingest embeds and stores products.
//
// Products without a description are skipped. Work proceeds in rounds of
// BatchSize*Concurrency products; when a round fails the products stored by
// earlier rounds stay indexed and the report counts them.
func (in *Ingester) Ingest(ctx context.Context, products []Product) (IngestReport, error) {
	start := time.Now()
	var report IngestReport

	pending := make([]Product, 0, len(products))
	for _, p := range products {
		switch {
		case p.Description == "":
			report.SkippedNoDescription++
		case in.opts.SkipExisting && in.exists(p.ID):
			report.SkippedExisting++
		default:
			pending = append(pending, p)
		}
	}

	round := in.opts.BatchSize * in.opts.Concurrency
	for len(pending) > 0 {
		n := min(round, len(pending))
		if err := in.ingestRound(ctx, pending[:n]); err != nil {
			report.Took = time.Since(start)
			in.opts.Logger.ErrorContext(ctx, "ingest failed", "indexed", report.Indexed, "error", err)
			return report, err
		}
		report.Indexed += n
		pending = pending[n:]

		in.opts.Logger.DebugContext(ctx, "ingest round completed", "indexed", report.Indexed, "remaining", len(pending))
	}

	report.Took = time.Since(start)
	in.opts.Logger.InfoContext(ctx, "ingest completed",
		"indexed", report.Indexed,
		"skipped_existing", report.SkippedExisting,
		"skipped_no_description", report.SkippedNoDescription,
		"took", report.Took,
	)
	return report, nil
}

func (in *Ingester) exists(id string) bool {
	_, ok := in.index.Get(id)
	return ok
}

func (in *Ingester) ingestRound(ctx context.Context, products []Product) error {
	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = in.opts.Template.Format(p)
	}

	vecs, err := embed.Batch(ctx, in.provider, texts, in.opts.BatchSize, in.opts.Concurrency)
	if err != nil {
		return fmt.Errorf("catalog: embed: %w", err)
	}

	for i, p := range products {
		if err := in.index.Put(ctx, p.ID, vecs[i], p.Metadata()); err != nil {
			return fmt.Errorf("catalog: put %q: %w", p.ID, err)
		}
	}
	return nil
}
