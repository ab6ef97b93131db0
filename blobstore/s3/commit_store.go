package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/vecsim/blobstore"
)

// DynamoDB attribute names of a commit item.
const (
	attrLocation = "base_uri"
	attrVersion  = "version"
	attrSnapshot = "snapshot_name"
)

// ErrConcurrentModification is returned by Commit when another publisher
// took the next version first.
var ErrConcurrentModification = errors.New("s3: concurrent modification detected")

// DDBClient is the subset of the DynamoDB API used by CommitStore.
// *dynamodb.Client satisfies it.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore is a Store whose current-snapshot pointer is kept in DynamoDB.
// Every Commit appends version n+1 with a conditional put, which gives the
// pointer the compare-and-swap S3 lacks.
//
// The table uses the location (e.g. "s3://bucket/prefix") as partition key
// and the version as numeric sort key:
//
//	aws dynamodb create-table \
//	  --table-name vecsim-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	*Store

	ddb      DDBClient
	table    string
	location string
}

// NewCommitStore returns a CommitStore over store whose commits are recorded
// in table under location.
func NewCommitStore(store *Store, ddb DDBClient, table, location string) *CommitStore {
	return &CommitStore{Store: store, ddb: ddb, table: table, location: location}
}

type commit struct {
	version  uint64
	snapshot string
}

// Current returns the most recently committed snapshot name, or
// blobstore.ErrNotFound before the first commit.
func (s *CommitStore) Current(ctx context.Context) (string, error) {
	c, err := s.head(ctx)
	if err != nil {
		return "", err
	}
	if c.version == 0 {
		return "", blobstore.ErrNotFound
	}
	return c.snapshot, nil
}

// Version returns the number of commits so far.
func (s *CommitStore) Version(ctx context.Context) (uint64, error) {
	c, err := s.head(ctx)
	return c.version, err
}

// Commit points Current at name. It fails with ErrConcurrentModification
// when another writer committed since the latest version was read.
func (s *CommitStore) Commit(ctx context.Context, name string) error {
	c, err := s.head(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			attrLocation: &types.AttributeValueMemberS{Value: s.location},
			attrVersion:  &types.AttributeValueMemberN{Value: strconv.FormatUint(c.version+1, 10)},
			attrSnapshot: &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(" + attrVersion + ")"),
	})

	var conflict *types.ConditionalCheckFailedException
	switch {
	case errors.As(err, &conflict):
		return ErrConcurrentModification
	case err != nil:
		return fmt.Errorf("s3: commit version %d: %w", c.version+1, err)
	}
	return nil
}

// head reads the newest commit; the zero commit means none exists.
func (s *CommitStore) head(ctx context.Context) (commit, error) {
	out, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String(attrLocation + " = :loc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":loc": &types.AttributeValueMemberS{Value: s.location},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return commit{}, fmt.Errorf("s3: query commits: %w", err)
	}
	if len(out.Items) == 0 {
		return commit{}, nil
	}
	return decodeCommit(out.Items[0])
}

func decodeCommit(item map[string]types.AttributeValue) (commit, error) {
	version, ok := item[attrVersion].(*types.AttributeValueMemberN)
	if !ok {
		return commit{}, fmt.Errorf("s3: commit item without %s", attrVersion)
	}
	snapshot, ok := item[attrSnapshot].(*types.AttributeValueMemberS)
	if !ok {
		return commit{}, fmt.Errorf("s3: commit item without %s", attrSnapshot)
	}

	n, err := strconv.ParseUint(version.Value, 10, 64)
	if err != nil {
		return commit{}, fmt.Errorf("s3: commit version: %w", err)
	}
	return commit{version: n, snapshot: snapshot.Value}, nil
}
