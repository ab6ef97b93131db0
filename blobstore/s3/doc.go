// Package s3 stores snapshots in Amazon S3.
//
// Store reads objects with ranged GETs and writes them through the s3
// manager uploader, which switches to multipart uploads for large blobs:
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("products/"), s3.WithRegion("us-east-1"))
//	name, err := snapshot.Publish(ctx, store, snapshot.NewBlobPointer(store), engine)
//
// When several processes publish to the same prefix, wrap the store in a
// CommitStore and pass it as the snapshot.Pointer; its DynamoDB conditional
// writes reject a commit that lost a race instead of overwriting it.
package s3
