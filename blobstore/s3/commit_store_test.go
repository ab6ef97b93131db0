package s3

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/vecsim/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // key -> item

	// beforePut runs before each PutItem, outside the lock.
	beforePut func()
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.beforePut != nil {
		m.beforePut()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":loc"].(*types.AttributeValueMemberS).Value

	var (
		best    map[string]types.AttributeValue
		bestVer uint64
	)
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value != baseURI {
			continue
		}
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		if best == nil || v > bestVer {
			best, bestVer = item, v
		}
	}

	if best == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{best}}, nil
}

func TestCommitStore_CurrentEmpty(t *testing.T) {
	store := NewCommitStore(NewStore(new(MockS3Client), "bucket", ""), newMockDDBClient(), "commits", "s3://bucket")

	_, err := store.Current(context.Background())
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestCommitStore_CommitSequence(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store := NewCommitStore(NewStore(new(MockS3Client), "bucket", ""), ddb, "commits", "s3://bucket")

	for i := 1; i <= 12; i++ {
		name := "snapshots/" + strconv.Itoa(i) + ".vsim"
		require.NoError(t, store.Commit(ctx, name))

		current, err := store.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, name, current)

		version, err := store.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), version)
	}
}

func TestCommitStore_IsolatedByBaseURI(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	a := NewCommitStore(NewStore(new(MockS3Client), "bucket", "a"), ddb, "commits", "s3://bucket/a")
	b := NewCommitStore(NewStore(new(MockS3Client), "bucket", "b"), ddb, "commits", "s3://bucket/b")

	require.NoError(t, a.Commit(ctx, "snap-a"))

	_, err := b.Current(ctx)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestCommitStore_ConcurrentModification(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store := NewCommitStore(NewStore(new(MockS3Client), "bucket", ""), ddb, "commits", "s3://bucket")
	rival := NewCommitStore(NewStore(new(MockS3Client), "bucket", ""), ddb, "commits", "s3://bucket")

	// The rival commits after store read the latest version but before it writes.
	ddb.beforePut = func() {
		ddb.beforePut = nil
		require.NoError(t, rival.Commit(ctx, "rival"))
	}

	err := store.Commit(ctx, "mine")
	assert.ErrorIs(t, err, ErrConcurrentModification)

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rival", current)
}
