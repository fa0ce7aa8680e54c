package cli

import (
	"context"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/appconfig"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/health"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/reports"
)

// InitReporters registers where relay reports go: service bus and sns when configured, local files otherwise.
func InitReporters(ctx context.Context, appConfig appconfig.AppConfig) error {
	registered := 0

	if appConfig.PublisherConnection != nil {
		ap, err := event.NewAzurePublisher[*reports.Report](ctx, *appConfig.PublisherConnection)
		if err != nil {
			return err
		}
		health.Register(ap)
		reports.Register(ap)
		registered++
	}

	if appConfig.SNSReporterEventArn != "" {
		sp, err := event.NewSNSPublisher[*reports.Report](ctx, appConfig.SNSReporterEventArn)
		if err != nil {
			return err
		}
		health.Register(sp)
		reports.Register(sp)
		registered++
	}

	if registered == 0 {
		fp := &event.FilePublisher[*reports.Report]{
			Dir: appConfig.LocalReportsFolder,
		}
		health.Register(fp)
		reports.Register(fp)
		logger.Info("writing relay reports to local folder", "dir", appConfig.LocalReportsFolder)
	}

	return nil
}
