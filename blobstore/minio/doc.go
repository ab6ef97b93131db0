// Package minio stores snapshots in MinIO or any other S3-compatible object
// store reachable through the MinIO client, such as Ceph or Garage.
//
//	store, err := minio.Dial(ctx, "localhost:9000", "minioadmin", "minioadmin", false, "catalog", "prod/")
//	if err != nil {
//		return err
//	}
//	name, err := snapshot.Publish(ctx, store, snapshot.NewBlobPointer(store), engine)
//
// Dial creates the bucket when it does not exist yet. Use NewStore to share
// an existing *minio.Client.
//
// Unlike blobstore/s3 there is no conditional pointer: the CURRENT blob is
// last-writer-wins, so a single publisher per prefix is assumed.
package minio
