package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"testing"

	"github.com/cdcgov/data-exchange-upload/blob-relay/cmd/cli"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/appconfig"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/serverdex"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/reports"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
	"github.com/joho/godotenv"
) // .import

const appMainExitCode = 1

var (
	appConfig appconfig.AppConfig
	logger    *slog.Logger
)

// NOTE: this large init file may be an antipattern.
// A main reason for it is to enable to cross cutting logging aspect.
// If another way is found to manage that this should be moved to main.
func init() {
	ctx := context.Background()

	logInfo := []any{}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		logInfo = append(logInfo, "buildInfo.Main.Path", buildInfo.Main.Path)
	}
	// ------------------------------------------------------------------
	// parse and load cli flags
	// ------------------------------------------------------------------
	if !testing.Testing() {
		if err := cli.ParseFlags(os.Args[1:]); err != nil {
			slog.Error("error starting app, error parsing cli flags", "error", err)
			os.Exit(appMainExitCode)
		} // .if
	}

	if cli.Flags.AppConfigPath != "" {
		slog.Info("Loading environment from", "file", cli.Flags.AppConfigPath)
		if err := godotenv.Load(cli.Flags.AppConfigPath); err != nil {
			slog.Warn("error loading local configuration, using the process environment", "error", err)
		} // .if
	}

	// ------------------------------------------------------------------
	// parse and load config from os exported
	// ------------------------------------------------------------------
	var err error
	appConfig, err = appconfig.ParseConfig(ctx)
	if err != nil {
		slog.Error("error starting app, error parsing app config", "error", err)
		os.Exit(appMainExitCode)
	} // .if

	// ------------------------------------------------------------------
	// configure app custom logging
	// ------------------------------------------------------------------
	logInfo = append(logInfo, "pkg", "main")
	logger = cli.AppLogger(appConfig).With(logInfo...)
	sloger.SetDefaultLogger(logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting app", "env", cli.Flags.RunMode, "mode", cli.Flags.Mode)

	shutdownTracing, err := cli.InitTracerProvider(ctx)
	if err != nil {
		logger.Warn("tracing not available", "error", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	if err := cli.InitReporters(ctx, appConfig); err != nil {
		logger.Error("error starting app, error configuring reporters", "error", err)
		os.Exit(appMainExitCode)
	}
	defer reports.CloseAll()

	pipeline, err := cli.NewPipeline(ctx, appConfig, cli.Flags.RunMode)
	if err != nil {
		logger.Error("error starting app, error configuring relay", "error", err)
		os.Exit(appMainExitCode)
	}

	// ------------------------------------------------------------------
	// 	one shot relay from the command line
	// ------------------------------------------------------------------
	if cli.Flags.Mode == cli.MODE_ONCE {
		res, err := pipeline.Relay(ctx, event.NewBlobCreatedEvent(cli.Flags.Blob, cli.Flags.Length))
		if err != nil {
			logger.Error("relay failed", "blob", cli.Flags.Blob, "error", err)
			os.Exit(appMainExitCode)
		}
		logger.Info("relay done", "blob", cli.Flags.Blob, "invocation_id", res.InvocationID, "archive_status", res.ArchiveStatus, "deleted", res.Deleted)
		return
	}

	var bus event.Publisher[*event.BlobCreated]
	if cli.Flags.Mode == cli.MODE_LISTEN {
		sub, queueName, err := cli.NewEventSubscriber(ctx, appConfig)
		if err != nil {
			logger.Error("error starting app, error configuring event subscriber", "error", err)
			os.Exit(appMainExitCode)
		}
		if p, ok := sub.(event.Publisher[*event.BlobCreated]); ok {
			bus = p
		}
		cli.StartQueuePoller(ctx, appConfig.QueuePollInterval)

		go func() {
			if err := cli.Listen(ctx, sub, queueName, pipeline); err != nil {
				logger.Error("event listener stopped", "queue", queueName, "error", err)
				stop()
			}
		}()
	}

	// start serving the app
	handler, err := cli.Serve(appConfig, pipeline, bus)
	if err != nil {
		logger.Error("error starting app, error initialize relay handlers", "error", err)
		os.Exit(appMainExitCode)
	}

	logger.Info("http handlers ready")
	// ------------------------------------------------------------------
	// create dex server, includes relay handlers
	// ------------------------------------------------------------------
	serverDex, err := serverdex.New(appConfig, handler)
	if err != nil {
		logger.Error("error starting app, error initialize dex server", "error", err)
		os.Exit(appMainExitCode)
	} // .if

	// ------------------------------------------------------------------
	// Start http custom server
	// ------------------------------------------------------------------
	httpServer := serverDex.HttpServer()

	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("error starting app, error starting http server", "error", err, "port", appConfig.ServerPort)
			os.Exit(appMainExitCode)
		} // .if
	}() // .go

	logger.Info("started http server with relay handlers", "port", appConfig.ServerPort)

	// ------------------------------------------------------------------
	// 	Block for Exit, server above is on goroutine
	// ------------------------------------------------------------------
	<-ctx.Done()

	// ------------------------------------------------------------------
	// close other connections, if needed
	// ------------------------------------------------------------------
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	logger.Info("closing server by os signal", "port", appConfig.ServerPort)
} // .main
