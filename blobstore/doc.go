// Package blobstore is where exported engine snapshots live.
//
// A BlobStore holds immutable, named blobs and hands out Blob handles for
// random-access reads. Implementations are safe for concurrent use:
//
//   - MemoryStore keeps blobs in a map (tests, mem:// URLs)
//   - LocalStore writes files atomically and reads them through mmap
//   - s3.Store and s3.CommitStore use Amazon S3, the latter with a DynamoDB pointer
//   - minio.Store uses MinIO or any other S3-compatible service
//
// Remote stores share Keyspace for mapping names to object keys and
// NewRangedBlob for serving reads with ranged requests.
package blobstore
