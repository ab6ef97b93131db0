// Package testutil generates reproducible vector data and measures search
// quality in tests.
//
//	rng := testutil.NewRNG(42)
//	vecs := rng.ClusteredVectors(2000, 16, 20, 0.05)
//	query := rng.Perturb(vecs[0], 0.01)
//	truth := testutil.ExactTopK(query, vecs, 10, dist)
//	recall := testutil.Recall(truth, approx)
package testutil
