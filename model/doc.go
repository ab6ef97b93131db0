// Package model defines core types used throughout vecsim.
//
// # Identity Types
//
//   - ID: user-facing, opaque string identifier of a record
//   - Row: dense, engine-local record number (uint32), reused after deletes
//
// # Data Types
//
//   - Record: vector with optional string metadata
//   - Neighbor: ranked search result
//
// # Errors
//
// The error taxonomy shared by every package lives here so that leaf packages
// (distance, store, hnsw, embed) can report the same sentinels without
// importing each other:
//
//	if errors.Is(err, model.ErrDimensionMismatch) { ... }
package model
