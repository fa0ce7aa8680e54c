package stores3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
)

type BucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type S3HealthCheck struct {
	Client     BucketHeader
	BucketName string
}

func (c *S3HealthCheck) Health(ctx context.Context) models.ServiceHealthResp {
	var shr models.ServiceHealthResp
	shr.Service = models.DESTINATION_HEALTH_PREFIX

	if c.Client == nil {
		return shr.BuildErrorResponse(errors.New(models.S3_CLIENT_NA))
	}

	shr.Service += " S3 Bucket " + c.BucketName
	if _, err := c.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &c.BucketName,
	}); err != nil {
		return shr.BuildErrorResponse(err)
	}

	return shr.BuildUpResponse()
}
