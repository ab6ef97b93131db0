// Package flat provides exact brute-force nearest neighbor search.
//
// It scans every live row of a Source, so its results are the ground truth
// the approximate graph index is measured against. Large sources are scanned
// in parallel chunks.
package flat
