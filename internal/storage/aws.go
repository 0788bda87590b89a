package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/sparklebrand/brand-api/internal/repository/dynamo"
)

// LoadAWSConfig loads the default credential chain for region, using the
// named shared profile when one is given.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// NewDynamoTable builds a table handle from region and profile.
func NewDynamoTable(ctx context.Context, table, region, profile string) (*dynamo.Table, error) {
	if table == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}
	cfg, err := LoadAWSConfig(ctx, region, profile)
	if err != nil {
		return nil, err
	}
	return dynamo.NewTable(dynamodb.NewFromConfig(cfg), table), nil
}
