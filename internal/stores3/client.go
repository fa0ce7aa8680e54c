package stores3

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrMissingCredentials = errors.New("missing s3 access key id or secret access key")

// ClientConfig describes how to reach the destination bucket.
type ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyId     string
	SecretAccessKey string
}

// NewClient builds an s3 client from static keys. The secret comes out of the vault per invocation, so
// nothing here falls back to the default credential chain.
func NewClient(ctx context.Context, c ClientConfig) (*s3.Client, error) {
	if strings.TrimSpace(c.AccessKeyId) == "" || strings.TrimSpace(c.SecretAccessKey) == "" {
		return nil, ErrMissingCredentials
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKeyId, c.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// For non-AWS S3 backends
		if c.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = &c.Endpoint
		}
	})

	return client, nil
}
