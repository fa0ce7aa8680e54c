package storeaz

import (
	"errors"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
) // .import

var (
	errStorageNameEmpty             = errors.New("error storage name is empty")
	errStorageKeyEmpty              = errors.New("error storage key is empty")
	errStorageEndpointEmpty         = errors.New("error storage endpoint is empty")
	errStorageConnectionStringEmpty = errors.New("error storage connection string is empty")
	errContainerNameEmpty           = errors.New("error container name is empty")
) // .var

// NewSharedKeyClient returns an azure blob client authenticated with the storage account key
func NewSharedKeyClient(storageName, storageKey, endpoint string) (*azblob.Client, error) {

	// check guard if names are not empty
	if len(strings.TrimSpace(storageName)) == 0 {
		return nil, errStorageNameEmpty
	} // .if

	// check guard if names are not empty
	if len(strings.TrimSpace(storageKey)) == 0 {
		return nil, errStorageKeyEmpty
	} // .if

	// check guard if names are not empty
	if len(strings.TrimSpace(endpoint)) == 0 {
		return nil, errStorageEndpointEmpty
	} // .if

	credential, err := azblob.NewSharedKeyCredential(storageName, storageKey)
	if err != nil {
		return nil, err
	} // .if

	return azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
} // .NewSharedKeyClient

// NewConnectionStringClient returns an azure blob client from a storage connection string
func NewConnectionStringClient(connectionString string) (*azblob.Client, error) {
	if len(strings.TrimSpace(connectionString)) == 0 {
		return nil, errStorageConnectionStringEmpty
	} // .if

	return azblob.NewClientFromConnectionString(connectionString, nil)
} // .NewConnectionStringClient

// NewContainerClient scopes a blob client to a single container
func NewContainerClient(client *azblob.Client, containerName string) (*container.Client, error) {
	if client == nil {
		return nil, errors.New(models.AZ_BLOB_CLIENT_NA)
	}
	if len(strings.TrimSpace(containerName)) == 0 {
		return nil, errContainerNameEmpty
	} // .if
	return client.ServiceClient().NewContainerClient(containerName), nil
} // .NewContainerClient
