// Package distance provides vector distance calculations.
//
// All functions are pure and safe for concurrent use without synchronization.
//
// # Supported Metrics
//
//   - Cosine: 1 - cosine similarity, in [0, 2] (default)
//   - Euclidean: L2 distance
//
// # Usage
//
//	d, err := distance.Cosine(a, b)
//	fn, err := distance.Provider(distance.MetricEuclidean)
package distance
