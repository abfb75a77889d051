package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

const (
	DefaultBedrockModel  = "anthropic.claude-sonnet-4-20250514-v1:0"
	DefaultBedrockRegion = "us-east-1"
)

// NewBedrockClient creates an AgentClient that talks to Anthropic models on
// Amazon Bedrock. cfg.APIKey carries the Bedrock bearer token.
func NewBedrockClient(ctx context.Context, cfg Config) (AgentClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	awsCfg, err := bedrockAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = DefaultBedrockModel
	}

	return &anthropicClient{
		client:   anthropic.NewClient(bedrock.WithConfig(awsCfg)),
		model:    model,
		provider: ProviderBedrock,
	}, nil
}

func bedrockAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultBedrockRegion
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	awsCfg.BearerAuthTokenProvider = bedrock.NewStaticBearerTokenProvider(cfg.APIKey)

	return awsCfg, nil
}
