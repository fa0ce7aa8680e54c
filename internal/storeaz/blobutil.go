package storeaz

import (
	"context"
	"log/slog"
	"net/url"
	"reflect"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
)

var (
	logger *slog.Logger
)

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

func CreateContainerIfNotExists(ctx context.Context, containerClient *container.Client) error {
	_, err := containerClient.GetProperties(ctx, nil)
	if err == nil {
		return nil
	}
	if !bloberror.HasCode(err, bloberror.ContainerNotFound) {
		return err
	}

	logger.Info("creating archive container", "container", containerClient.URL())
	_, err = containerClient.Create(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		logger.Error("failed to create archive container", "container", containerClient.URL(), "error", err)
		return err
	}
	return nil
}

// BlobURL joins a blob service endpoint, container and blob name, escaping each path segment of the name.
func BlobURL(endpoint, containerName, blobName string) string {
	segments := strings.Split(blobName, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(endpoint, "/") + "/" + url.PathEscape(containerName) + "/" + strings.Join(segments, "/")
}
