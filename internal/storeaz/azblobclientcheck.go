package storeaz

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
) // .import

type ContainerHealthCheck struct {
	Prefix string
	Client *container.Client
}

func (c *ContainerHealthCheck) Health(ctx context.Context) models.ServiceHealthResp {
	return checkContainerClient(ctx, c.Prefix, c.Client)
}

// checkContainerClient, method for checking the container client can still reach its container
func checkContainerClient(ctx context.Context, prefix string, client *container.Client) models.ServiceHealthResp {

	var shr models.ServiceHealthResp
	shr.Service = prefix

	// guard client is null
	if client == nil {
		return shr.BuildErrorResponse(errors.New(models.AZ_BLOB_CLIENT_NA))
	} // .if

	shr.Service = prefix + " " + client.URL()
	if _, err := client.GetProperties(ctx, nil); err != nil {
		return shr.BuildErrorResponse(err)
	} // .if

	return shr.BuildUpResponse()
} // .checkContainerClient
