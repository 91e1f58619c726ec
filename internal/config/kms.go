package config

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// NewKMSClient builds a KMS client from the default AWS credential chain.
func NewKMSClient(ctx context.Context) (*kms.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	slog.Info("Successfully initialized AWS KMS client", "region", cfg.Region)
	return kms.NewFromConfig(cfg), nil
}
