package db

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/reviewflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items     map[string]map[string]types.AttributeValue
	putErr    error
	updateErr error

	lastPut    *dynamodb.PutItemInput
	lastUpdate *dynamodb.UpdateItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	id := in.Item["id"].(*types.AttributeValueMemberS).Value
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if aws.ToString(in.IndexName) == taskHandleIndex {
			want := in.ExpressionAttributeValues[":h"].(*types.AttributeValueMemberS).Value
			if h, ok := item["task_handle"].(*types.AttributeValueMemberS); ok && h.Value == want {
				out = append(out, item)
			}
		}
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func (f *fakeDynamo) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if _, ok := item["user_id"]; !ok {
			out = append(out, item)
		}
	}
	return &dynamodb.ScanOutput{Items: out}, nil
}

func TestDynamoJobRepository_CreateAndGet(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoJobRepository(fake, "")
	ctx := context.Background()

	job := &models.ScrapeJob{ID: "j1", TaskHandle: "t1", Source: "hotel", URL: "https://h.io", MaxItems: 100}
	require.NoError(t, repo.CreateJob(ctx, job))
	assert.Equal(t, DefaultJobsTable, aws.ToString(fake.lastPut.TableName))
	assert.Equal(t, "attribute_not_exists(id)", aws.ToString(fake.lastPut.ConditionExpression))
	_, hasUser := fake.lastPut.Item["user_id"]
	assert.False(t, hasUser)

	got, err := repo.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, "hotel", got.Source)

	byHandle, err := repo.GetJobByHandle(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "j1", byHandle.ID)

	_, err = repo.GetJob(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	jobs, total, err := repo.ListJobsByUser(ctx, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "j1", jobs[0].ID)
}

func TestDynamoJobRepository_CreateDuplicate(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = &types.ConditionalCheckFailedException{Message: aws.String("exists")}

	err := NewDynamoJobRepository(fake, "jobs").CreateJob(context.Background(), &models.ScrapeJob{ID: "j1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestDynamoJobRepository_TransitionCondition(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoJobRepository(fake, "jobs")

	require.NoError(t, repo.CompleteJob(context.Background(), "j1", 5))
	in := fake.lastUpdate
	assert.Equal(t, "attribute_exists(id) AND #status IN (:from0)", aws.ToString(in.ConditionExpression))
	assert.Equal(t, "status", in.ExpressionAttributeNames["#status"])
	assert.Equal(t, "5", in.ExpressionAttributeValues[":count"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "processing", in.ExpressionAttributeValues[":from0"].(*types.AttributeValueMemberS).Value)

	require.NoError(t, repo.FailJob(context.Background(), "j1", "boom"))
	assert.Equal(t, "attribute_exists(id) AND #status IN (:from0, :from1)", aws.ToString(fake.lastUpdate.ConditionExpression))
}

func TestDynamoJobRepository_RejectedTransition(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoJobRepository(fake, "jobs")
	ctx := context.Background()

	done := models.ScrapeJob{ID: "j1", TaskHandle: "t1", Status: models.JobStatusCompleted, CreatedAt: time.Now().UTC()}
	item, err := attributevalue.MarshalMap(done)
	require.NoError(t, err)
	fake.items["j1"] = item
	fake.updateErr = &types.ConditionalCheckFailedException{Message: aws.String("status")}

	assert.ErrorIs(t, repo.FailJob(ctx, "j1", "late"), ErrInvalidTransition)
	assert.ErrorIs(t, repo.MarkProcessing(ctx, "ghost", 1), ErrNotFound)
}
