// Package metadata provides metadata filtering for vecsim.
//
// Metadata is a flat map of string keys to string values (category, brand,
// stock state, ...). Filters are evaluated either per record with Matches or
// in bulk against a Roaring Bitmap-based inverted index, which turns a
// FilterSet into the exact set of rows that satisfy it before the vector
// search starts.
//
// # Filter Operations
//
//   - Eq(key, value): equality
//   - Ne(key, value): inequality (the key must be present)
//   - In(key, values...): value in set
//   - Contains(key, substr): substring match
//   - Prefix(key, prefix): prefix match
//   - Exists(key): key present
//
// Filters in a FilterSet are combined with logical AND:
//
//	fs := metadata.And(
//	    metadata.Eq("category", "electronics"),
//	    metadata.Ne("in_stock", "false"),
//	)
package metadata
