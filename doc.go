// Package vecsim provides an embedded vector similarity search engine for Go.
//
// An Engine stores records (a string id, a float64 vector and string
// metadata) and answers k-nearest-neighbor queries under the cosine or
// euclidean metric. Small stores and narrow filters are answered by an exact
// scan; larger ones by an HNSW graph that is kept up to date incrementally and
// rebuilt when too many incremental edits have accumulated.
//
// # Quick Start
//
//	ctx := context.Background()
//	engine, _ := vecsim.New(vecsim.WithMetric(distance.MetricCosine))
//
//	_ = engine.Put(ctx, "shoe-1", []float64{0.1, 0.9, 0.2}, map[string]string{"brand": "acme"})
//	_ = engine.Put(ctx, "shoe-2", []float64{0.2, 0.8, 0.1}, map[string]string{"brand": "zeta"})
//
//	res, _ := engine.SimilarTo(ctx, "shoe-1", 10)
//	for _, n := range res {
//	    fmt.Println(n.ID, n.Distance, n.Metadata)
//	}
//
// # Filtering
//
// Metadata filters are evaluated against roaring bitmaps before the search
// starts. Narrow filters switch the query to an exact scan of the matching
// rows:
//
//	res, _ := engine.SimilarToVector(ctx, q, 5,
//	    vecsim.WithFilter(metadata.And(metadata.Eq("brand", "acme"))),
//	    vecsim.WithMaxDistance(0.3),
//	)
//
// # Deferred Indexing
//
// By default every Put and Delete is applied to the graph immediately. With
// WithDeferredIndexing mutations are queued and applied by the next query or
// by Flush, which makes bulk loads cheaper.
//
// # Snapshots
//
// Export writes a compressed, checksummed snapshot; Import reads it back and
// rebuilds the graph. The snapshot package stores snapshots in any
// blobstore.BlobStore:
//
//	name, _ := snapshot.Publish(ctx, store, snapshot.NewBlobPointer(store), engine)
//	engine, _ = snapshot.LoadCurrent(ctx, store, ptr, vecsim.Importer())
//
// # Concurrency
//
// Engine methods are safe for concurrent use. Queries share a read lock and
// upgrade to the write lock only when pending mutations or a stale graph need
// maintenance first.
package vecsim
