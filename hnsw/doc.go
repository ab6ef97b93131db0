// Package hnsw implements the Hierarchical Navigable Small World (HNSW) graph
// for approximate nearest neighbor search over store rows.
//
// The graph keeps its own copy of every vector (L2-normalized for the cosine
// metric) so that it never reads the store while answering queries.
//
// Inserts and removes are incremental. A remove unlinks the node and re-wires
// each former neighbor from the removed node's neighborhood, so the cost is
// bounded by the neighborhood size rather than the graph size. Every mutation
// increments Staleness; callers rebuild the graph with Build once staleness
// crosses their threshold.
//
// A Graph is not safe for concurrent mutation. Concurrent Search calls are
// safe while no mutation is running.
package hnsw
