package serverdex

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/appconfig"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/metrics"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
) // .import

// ServerDex, serves the relay routes for the functions host and the operational endpoints
type ServerDex struct {
	AppConfig appconfig.AppConfig
	Handler   http.Handler

	logger *slog.Logger
} // .ServerDex

// New returns an custom server for the blob relay ready to serve
func New(appConfig appconfig.AppConfig, handler http.Handler) (ServerDex, error) {

	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger := sloger.With("pkg", pkgParts[len(pkgParts)-1])

	if handler == nil {
		handler = http.DefaultServeMux
	}

	return ServerDex{
		AppConfig: appConfig,
		Handler:   handler,
		logger:    logger,
	}, nil // .return

} // New

// HttpServer, wraps the routes with tracing and request metrics and sets the port address
func (sd *ServerDex) HttpServer() *http.Server {

	// --------------------------------------------------------------
	// 		Custom Server, if needed to customize
	// --------------------------------------------------------------
	return &http.Server{

		Addr: ":" + sd.AppConfig.ServerPort,

		Handler: otelhttp.NewHandler(metrics.TrackHTTP(sd.Handler), "blob-relay"),

		// relays of large blobs hold the request open, so only the header read is bounded
		ReadHeaderTimeout: 30 * time.Second,
		ErrorLog:          slog.NewLogLogger(sd.logger.Handler(), slog.LevelError),
	} // .httpServer
} // .HttpServer
