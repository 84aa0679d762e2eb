package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/reviewflow/internal/models"
)

const (
	DefaultJobsTable  = "ScrapeJobs"
	taskHandleIndex   = "task_handle-index"
	userJobsIndex     = "user_id-index"
	statusAttrName    = "#status"
	conditionExisting = "attribute_exists(id)"
)

type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoJobRepository stores scrape jobs in DynamoDB. Status changes use
// condition expressions so terminal jobs are never rewritten.
type DynamoJobRepository struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

func NewDynamoJobRepository(client DynamoAPI, table string) *DynamoJobRepository {
	if table == "" {
		table = DefaultJobsTable
	}
	return &DynamoJobRepository{client: client, table: table, now: time.Now}
}

func (r *DynamoJobRepository) CreateJob(ctx context.Context, job *models.ScrapeJob) error {
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	job.CreatedAt = r.now().UTC()

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to marshal job: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("[DynamoDB] failed to put job: %w", err)
	}
	return nil
}

func (r *DynamoJobRepository) GetJob(ctx context.Context, id string) (models.ScrapeJob, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return models.ScrapeJob{}, fmt.Errorf("[DynamoDB] failed to get job: %w", err)
	}
	if len(out.Item) == 0 {
		return models.ScrapeJob{}, ErrNotFound
	}

	var job models.ScrapeJob
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return models.ScrapeJob{}, fmt.Errorf("[DynamoDB] failed to unmarshal job: %w", err)
	}
	return job, nil
}

func (r *DynamoJobRepository) GetJobByHandle(ctx context.Context, handle string) (models.ScrapeJob, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(taskHandleIndex),
		KeyConditionExpression: aws.String("task_handle = :h"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h": &types.AttributeValueMemberS{Value: handle},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return models.ScrapeJob{}, fmt.Errorf("[DynamoDB] failed to query job by handle: %w", err)
	}
	if len(out.Items) == 0 {
		return models.ScrapeJob{}, ErrNotFound
	}

	var job models.ScrapeJob
	if err := attributevalue.UnmarshalMap(out.Items[0], &job); err != nil {
		return models.ScrapeJob{}, fmt.Errorf("[DynamoDB] failed to unmarshal job: %w", err)
	}
	return job, nil
}

func (r *DynamoJobRepository) MarkProcessing(ctx context.Context, id string, attempt int) error {
	return r.transition(ctx, id, models.JobStatusProcessing,
		"SET #status = :to, attempts = :attempt, started_at = if_not_exists(started_at, :now)",
		map[string]types.AttributeValue{
			":attempt": &types.AttributeValueMemberN{Value: strconv.Itoa(attempt)},
		})
}

func (r *DynamoJobRepository) CompleteJob(ctx context.Context, id string, reviewsCount int) error {
	return r.transition(ctx, id, models.JobStatusCompleted,
		"SET #status = :to, reviews_count = :count, completed_at = :now REMOVE error_message",
		map[string]types.AttributeValue{
			":count": &types.AttributeValueMemberN{Value: strconv.Itoa(reviewsCount)},
		})
}

func (r *DynamoJobRepository) FailJob(ctx context.Context, id string, message string) error {
	return r.transition(ctx, id, models.JobStatusFailed,
		"SET #status = :to, error_message = :msg, completed_at = :now",
		map[string]types.AttributeValue{
			":msg": &types.AttributeValueMemberS{Value: message},
		})
}

func (r *DynamoJobRepository) transition(ctx context.Context, id string, to models.JobStatus, update string, values map[string]types.AttributeValue) error {
	values[":to"] = &types.AttributeValueMemberS{Value: string(to)}
	values[":now"] = &types.AttributeValueMemberS{Value: r.now().UTC().Format(time.RFC3339Nano)}

	condition := conditionExisting + " AND " + statusAttrName + " IN ("
	for i, from := range models.SourcesFor(to) {
		key := ":from" + strconv.Itoa(i)
		values[key] = &types.AttributeValueMemberS{Value: string(from)}
		if i > 0 {
			condition += ", "
		}
		condition += key
	}
	condition += ")"

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  map[string]string{statusAttrName: "status"},
		ExpressionAttributeValues: values,
	})
	if err == nil {
		return nil
	}
	if !isConditionFailed(err) {
		return fmt.Errorf("[DynamoDB] failed to move job %s to %s: %w", id, to, err)
	}

	if _, getErr := r.GetJob(ctx, id); getErr != nil {
		return getErr
	}
	slog.Warn("[DynamoDB] Rejected job status change",
		slog.String("job_id", id),
		slog.String("to", string(to)))
	return fmt.Errorf("job %s to %s: %w", id, to, ErrInvalidTransition)
}

// ListJobsByUser pages through the user's jobs newest first. Jobs without
// an owner are found with a filtered scan.
func (r *DynamoJobRepository) ListJobsByUser(ctx context.Context, userID *int64, limit, offset int) ([]models.ScrapeJob, int, error) {
	var items []map[string]types.AttributeValue

	if userID != nil {
		paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
			TableName:              aws.String(r.table),
			IndexName:              aws.String(userJobsIndex),
			KeyConditionExpression: aws.String("user_id = :u"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberN{Value: strconv.FormatInt(*userID, 10)},
			},
			ScanIndexForward: aws.Bool(false),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, 0, fmt.Errorf("[DynamoDB] failed to query user jobs: %w", err)
			}
			items = append(items, page.Items...)
		}
	} else {
		paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
			TableName:        aws.String(r.table),
			FilterExpression: aws.String("attribute_not_exists(user_id)"),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, 0, fmt.Errorf("[DynamoDB] failed to scan jobs: %w", err)
			}
			items = append(items, page.Items...)
		}
	}

	var jobs []models.ScrapeJob
	if err := attributevalue.UnmarshalListOfMaps(items, &jobs); err != nil {
		return nil, 0, fmt.Errorf("[DynamoDB] failed to unmarshal jobs: %w", err)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })

	total := len(jobs)
	if offset >= total {
		return nil, total, nil
	}
	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, total, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
