package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type AWSSettings struct {
	Region   string
	Endpoint string
}

func GetAWSConfig(ctx context.Context, s AWSSettings) (aws.Config, error) {
	slog.Info("[AWSClient] Initializing AWS Config...", slog.String("region", s.Region))
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(s.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("[AWSClient] failed to load AWS config: %w", err)
	}
	slog.Info("[AWSClient] AWS Config Initialized")
	return cfg, nil
}

// NewDynamoDBClient builds a client, pointing it at s.Endpoint when one is
// set (DynamoDB Local, LocalStack).
func NewDynamoDBClient(ctx context.Context, s AWSSettings) (*dynamodb.Client, error) {
	cfg, err := GetAWSConfig(ctx, s)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
	}), nil
}
