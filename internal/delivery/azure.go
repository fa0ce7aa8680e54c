package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
)

type AzureSource struct {
	FromContainerClient *container.Client
	// SASExpiry, when set, makes URL hand out a read-only signed url so the archive account can read a private source.
	SASExpiry time.Duration
}

func (as *AzureSource) Download(ctx context.Context, name string, w io.Writer) (SourceInfo, error) {
	info := SourceInfo{Size: -1}
	srcBlobClient := as.FromContainerClient.NewBlobClient(name)
	s, err := srcBlobClient.DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ResourceNotFound, bloberror.ContainerNotFound) {
			return info, fmt.Errorf("%w: %s", ErrSrcFileNotExist, srcBlobClient.URL())
		}
		return info, err
	}
	defer s.Body.Close()

	if s.ContentLength != nil {
		info.Size = *s.ContentLength
	}
	info.MD5 = s.ContentMD5
	if len(info.MD5) == 0 {
		info.MD5 = s.BlobContentMD5
	}

	if _, err := io.Copy(w, s.Body); err != nil {
		return info, err
	}
	return info, nil
}

func (as *AzureSource) Delete(ctx context.Context, name string) error {
	_, err := as.FromContainerClient.NewBlobClient(name).Delete(ctx, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("%w: %s", ErrSrcFileNotExist, name)
	}
	return err
}

func (as *AzureSource) URL(name string) string {
	srcBlobClient := as.FromContainerClient.NewBlobClient(name)
	if as.SASExpiry > 0 {
		u, err := srcBlobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().UTC().Add(as.SASExpiry), nil)
		if err == nil {
			return u
		}
		logger.Warn("falling back to unsigned source url", "blob", name, "error", err)
	}
	return srcBlobClient.URL()
}

func (as *AzureSource) Health(ctx context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = models.SOURCE_STORAGE_HEALTH_PREFIX
	if as.FromContainerClient == nil {
		return rsp.BuildErrorResponse(errors.New(models.AZ_BLOB_CLIENT_NA))
	}
	rsp.Service += " " + as.FromContainerClient.URL()
	if _, err := as.FromContainerClient.GetProperties(ctx, nil); err != nil {
		return rsp.BuildErrorResponse(err)
	}
	return rsp.BuildUpResponse()
}

// AzureCopyClient drives a server side copy into a single archive blob.
type AzureCopyClient struct {
	ToBlobClient *blob.Client
}

func NewAzureCopyClient(archive *container.Client, name string) *AzureCopyClient {
	return &AzureCopyClient{
		ToBlobClient: archive.NewBlobClient(name),
	}
}

func (ac *AzureCopyClient) StartCopy(ctx context.Context, srcURL string) (CopyState, error) {
	resp, err := ac.ToBlobClient.StartCopyFromURL(ctx, srcURL, nil)
	if err != nil {
		return CopyState{}, err
	}
	return copyState(resp.CopyStatus, resp.CopyID, nil), nil
}

func (ac *AzureCopyClient) GetCopyState(ctx context.Context) (CopyState, error) {
	props, err := ac.ToBlobClient.GetProperties(ctx, nil)
	if err != nil {
		return CopyState{}, err
	}
	return copyState(props.CopyStatus, props.CopyID, props.CopyStatusDescription), nil
}

func (ac *AzureCopyClient) AbortCopy(ctx context.Context, copyID string) error {
	_, err := ac.ToBlobClient.AbortCopyFromURL(ctx, copyID, nil)
	if bloberror.HasCode(err, bloberror.NoPendingCopyOperation) {
		return fmt.Errorf("%w: %w", ErrNoPendingCopy, err)
	}
	return err
}

func (ac *AzureCopyClient) URL() string {
	return ac.ToBlobClient.URL()
}

func copyState(status *blob.CopyStatusType, id *string, description *string) CopyState {
	var state CopyState
	if id != nil {
		state.ID = *id
	}
	if description != nil {
		state.Description = *description
	}
	if status == nil {
		state.Status = CopyStatusPending
		return state
	}
	switch *status {
	case blob.CopyStatusTypeSuccess:
		state.Status = CopyStatusSuccess
	case blob.CopyStatusTypeFailed:
		state.Status = CopyStatusFailed
	case blob.CopyStatusTypeAborted:
		state.Status = CopyStatusAborted
	default:
		state.Status = CopyStatusPending
	}
	return state
}
