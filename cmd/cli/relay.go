package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/appconfig"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/delivery"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/health"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/identity"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/locker"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/relay"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/storagehealth"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/storeaz"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/stores3"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/vault"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/version"
)

const serviceName = "blob-relay"

var ErrMissingArchiveConnection = errors.New("archive connection string adlcertadls2storage is not set")

// NewPipeline builds the relay pipeline for the run mode, backed by azure and the s3 bucket or by local folders.
func NewPipeline(ctx context.Context, appConfig appconfig.AppConfig, runMode string) (*relay.Pipeline, error) {
	l, err := NewLocker(ctx, appConfig)
	if err != nil {
		return nil, err
	}

	p := &relay.Pipeline{
		SecretNames: relay.SecretNames{
			StorageKey: appConfig.StorageKeySecretName,
			AccessKey:  appConfig.AccessKeySecretName,
		},
		SourceContainer: appConfig.SourceContainer,
		Scratch:         &delivery.Scratch{Dir: appConfig.ScratchDir},
		Locker:          l,
		ServiceName:     serviceName,
		ServiceVersion:  version.Current().String(),
	}

	switch runMode {
	case RUN_MODE_AZURE:
		err = wireAzure(ctx, appConfig, p)
	case RUN_MODE_LOCAL:
		err = wireLocal(appConfig, p)
	default:
		err = fmt.Errorf("unknown run mode %s", runMode)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func NewLocker(ctx context.Context, appConfig appconfig.AppConfig) (locker.Locker, error) {
	if appConfig.RedisLockURI == "" {
		return locker.NewMemoryLocker(), nil
	}
	client, err := locker.NewRedisClient(ctx, appConfig.RedisLockURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis locker: %w", err)
	}
	health.Register(&locker.RedisLockerHealth{Client: client})
	logger.Info("using redis locker", "expiry", appConfig.LockExpiry)
	return locker.NewRedisLocker(client, locker.WithLogger(logger), locker.WithExpiry(appConfig.LockExpiry)), nil
}

func NewTokenSource(appConfig appconfig.AppConfig) (identity.TokenSource, error) {
	switch appConfig.TokenSource {
	case appconfig.TokenSourceAzIdentity:
		return identity.NewManagedIdentityTokenSource(appConfig.IdentityClientId)
	default:
		return identity.NewMSITokenSource(appConfig.IdentityEndpoint, appConfig.IdentityHeader), nil
	}
}

func wireAzure(ctx context.Context, appConfig appconfig.AppConfig, p *relay.Pipeline) error {
	if appConfig.ArchiveConnectionString == "" {
		return ErrMissingArchiveConnection
	}
	if err := appConfig.CheckRelay(); err != nil {
		return err
	}

	tokens, err := NewTokenSource(appConfig)
	if err != nil {
		return err
	}
	p.Tokens = tokens
	p.Vault = vault.New(appConfig.VaultBaseUrl)

	archiveClient, err := storeaz.NewConnectionStringClient(appConfig.ArchiveConnectionString)
	if err != nil {
		return fmt.Errorf("failed to connect to archive storage: %w", err)
	}
	archive, err := storeaz.NewContainerClient(archiveClient, appConfig.ArchiveContainer)
	if err != nil {
		return err
	}
	if err := storeaz.CreateContainerIfNotExists(ctx, archive); err != nil {
		logger.Warn("could not make sure the archive container exists", "container", appConfig.ArchiveContainer, "error", err)
	}
	health.Register(&storeaz.ContainerHealthCheck{Prefix: "Archive", Client: archive})

	p.Archiver = &delivery.Archiver{
		NewCopyClient: func(name string) (delivery.CopyClient, error) {
			return delivery.NewAzureCopyClient(archive, name), nil
		},
		MaxAttempts:  appConfig.Archive.MaxAttempts,
		PollInterval: appConfig.Archive.PollInterval,
	}

	if appConfig.SourceHealthCheck {
		check, err := storagehealth.NewIdentityContainerCheck("Source", appConfig.SourceEndpoint(), appConfig.SourceContainer, appConfig.IdentityClientId)
		if err != nil {
			logger.Warn("source storage health check not available", "error", err)
		} else {
			health.Register(check)
		}
	}

	p.NewSource = func(_ context.Context, s *relay.Session) (delivery.Source, error) {
		client, err := storeaz.NewSharedKeyClient(appConfig.StorageAccountName, s.Secrets.StorageKey, appConfig.SourceEndpoint())
		if err != nil {
			return nil, err
		}
		containerClient, err := storeaz.NewContainerClient(client, s.Event.Container())
		if err != nil {
			return nil, err
		}
		return &delivery.AzureSource{
			FromContainerClient: containerClient,
			SASExpiry:           appConfig.SourceSASExpiry,
		}, nil
	}

	p.NewDestination = func(ctx context.Context, s *relay.Session) (delivery.Destination, error) {
		return delivery.NewS3Destination(ctx, stores3.ClientConfig{
			Endpoint:        appConfig.S3Endpoint,
			Region:          appConfig.S3Region,
			AccessKeyId:     appConfig.AccessKeyId,
			SecretAccessKey: s.Secrets.AccessKey,
		}, appConfig.BucketName, appConfig.UploadPartSize)
	}

	logger.Info("relay wired for azure", "source_container", appConfig.SourceContainer, "archive_container", appConfig.ArchiveContainer, "bucket", appConfig.BucketName)
	return nil
}

func wireLocal(appConfig appconfig.AppConfig, p *relay.Pipeline) error {
	for _, dir := range []string{
		appConfig.LocalSourceFolder,
		appConfig.LocalArchiveFolder,
		appConfig.LocalDestinationFolder,
		appConfig.ScratchDir,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	p.Tokens = identity.StaticTokenSource("local")
	p.Vault = vault.StaticSecrets{
		appConfig.StorageKeySecretName: "local",
		appConfig.AccessKeySecretName:  "local",
	}

	p.NewSource = func(_ context.Context, s *relay.Session) (delivery.Source, error) {
		return &delivery.FileSource{FromPath: filepath.Join(appConfig.LocalSourceFolder, s.Event.Container())}, nil
	}

	dest := &delivery.FileDestination{ToPath: appConfig.LocalDestinationFolder, Name: appConfig.BucketName}
	p.NewDestination = func(context.Context, *relay.Session) (delivery.Destination, error) {
		return dest, nil
	}

	p.Archiver = &delivery.Archiver{
		NewCopyClient: func(name string) (delivery.CopyClient, error) {
			return &delivery.FileCopyClient{ToPath: appConfig.LocalArchiveFolder, Name: name}, nil
		},
		MaxAttempts:  appConfig.Archive.MaxAttempts,
		PollInterval: appConfig.Archive.PollInterval,
	}

	health.Register(&delivery.FileSource{FromPath: appConfig.LocalSourceFolder}, dest)
	logger.Info("relay wired for local folders", "source", appConfig.LocalSourceFolder, "destination", appConfig.LocalDestinationFolder)
	return nil
}
