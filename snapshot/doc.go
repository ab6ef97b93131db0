// Package snapshot implements the engine's export format and its storage in
// blob stores.
//
// # Format
//
// A snapshot is a fixed 64-byte little-endian header followed by a payload of
// compressed blocks:
//
//	offset size field
//	0      4    magic "VSIM"
//	4      2    format version
//	6      1    compression (0 none, 1 lz4, 2 zstd)
//	7      1    metric (0 cosine, 1 euclidean)
//	8      4    dimension
//	12     8    record count
//	20     8    payload size in bytes
//	28     4    CRC-32 (IEEE) of the payload
//	32     16   metadata codec name, zero padded
//	48     16   reserved
//
// Each block is [uncompressed size uint32][compressed size uint32][data]. A
// compressed size of 0 marks a block that is stored as is because compression
// did not pay off.
//
// Records are written in ascending id order as
// [uvarint id length][id][dimension × float64 bits][uvarint metadata length][metadata].
// Vectors are stored bit-exact; the graph index is not stored and is rebuilt
// on import.
package snapshot
