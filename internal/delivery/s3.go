package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/stores3"
)

// error codes the object store answers with when the key pair is wrong
var credentialErrorCodes = map[string]bool{
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"AccessDenied":          true,
}

type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Destination struct {
	Uploader   Uploader
	Client     stores3.BucketHeader
	BucketName string
}

func NewS3Destination(ctx context.Context, c stores3.ClientConfig, bucketName string, partSizeMB int64) (*S3Destination, error) {
	client, err := stores3.NewClient(ctx, c)
	if err != nil {
		return nil, err
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if partSizeMB > 0 {
			u.PartSize = partSizeMB * 1024 * 1024
		}
	})
	return &S3Destination{
		Uploader:   uploader,
		Client:     client,
		BucketName: bucketName,
	}, nil
}

func (sd *S3Destination) Upload(ctx context.Context, localPath string, objectName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrLocalFileNotExist, localPath)
		}
		return "", err
	}
	defer f.Close()

	if sd.Uploader == nil {
		return "", ErrMissingCredentials
	}

	out, err := sd.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &sd.BucketName,
		Key:    &objectName,
		Body:   f,
	})
	if err != nil {
		var coded interface{ ErrorCode() string }
		if errors.As(err, &coded) && credentialErrorCodes[coded.ErrorCode()] {
			return "", fmt.Errorf("%w: %w", ErrMissingCredentials, err)
		}
		return "", fmt.Errorf("failed to upload file to %s %s: %w", sd.BucketName, objectName, err)
	}

	return out.Location, nil
}

func (sd *S3Destination) Health(ctx context.Context) models.ServiceHealthResp {
	return (&stores3.S3HealthCheck{Client: sd.Client, BucketName: sd.BucketName}).Health(ctx)
}
