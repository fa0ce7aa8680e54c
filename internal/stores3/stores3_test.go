package stores3

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHeader struct {
	err    error
	bucket string
}

func (f *fakeHeader) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.bucket = *params.Bucket
	return &s3.HeadBucketOutput{}, f.err
}

func TestNewClientRequiresKeys(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Region: "us-east-1", AccessKeyId: "AKIA"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewClient(context.Background(), ClientConfig{Region: "us-east-1", SecretAccessKey: "s3cr3t"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNewClientCustomEndpoint(t *testing.T) {
	c, err := NewClient(context.Background(), ClientConfig{
		Endpoint:        "http://minio:9000",
		Region:          "us-east-1",
		AccessKeyId:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)
	opts := c.Options()
	assert.True(t, opts.UsePathStyle)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://minio:9000", *opts.BaseEndpoint)
}

func TestS3HealthCheck(t *testing.T) {
	up := &fakeHeader{}
	rsp := (&S3HealthCheck{Client: up, BucketName: "rbi-drop"}).Health(context.Background())
	assert.Equal(t, models.STATUS_UP, rsp.Status)
	assert.Equal(t, "rbi-drop", up.bucket)

	rsp = (&S3HealthCheck{Client: &fakeHeader{err: errors.New("forbidden")}, BucketName: "rbi-drop"}).Health(context.Background())
	assert.Equal(t, models.STATUS_DOWN, rsp.Status)
	assert.Equal(t, "forbidden", rsp.HealthIssue)

	rsp = (&S3HealthCheck{BucketName: "rbi-drop"}).Health(context.Background())
	assert.Equal(t, models.STATUS_DOWN, rsp.Status)
	assert.Equal(t, models.S3_CLIENT_NA, rsp.HealthIssue)
}
