package storagehealth

import (
	"errors"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/storeaz"
)

var errContainerURLEmpty = errors.New("error container endpoint or name is empty")

// NewIdentityContainerCheck checks a container with the app's own azure identity instead of a vault issued account key.
// An empty clientId picks the default credential chain.
func NewIdentityContainerCheck(prefix, endpoint, containerName, clientId string) (*storeaz.ContainerHealthCheck, error) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(containerName) == "" {
		return nil, errContainerURLEmpty
	}

	cred, err := newCredential(clientId)
	if err != nil {
		return nil, err
	}

	client, err := container.NewClient(strings.TrimSuffix(storeaz.BlobURL(endpoint, containerName, ""), "/"), cred, nil)
	if err != nil {
		return nil, err
	}

	return &storeaz.ContainerHealthCheck{
		Prefix: prefix,
		Client: client,
	}, nil
}

func newCredential(clientId string) (azcore.TokenCredential, error) {
	if clientId == "" {
		return azidentity.NewDefaultAzureCredential(nil)
	}
	return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
		ID: azidentity.ClientID(clientId),
	})
}
