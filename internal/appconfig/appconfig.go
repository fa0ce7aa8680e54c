package appconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/cdcgov/data-exchange-upload/blob-relay/pkg/sloger"
	"github.com/sethvargo/go-envconfig"
) // .import

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

const (
	TokenSourceMSI        = "msi"
	TokenSourceAzIdentity = "azidentity"
)

type RootResp struct {
	System     string `json:"system"`
	DexProduct string `json:"dex_product"`
	DexApp     string `json:"dex_app"`
	ServerTime string `json:"server_time"`
} // .rootResp

type AppConfig struct {

	// App and for Logger
	LoggerDebugOn bool   `env:"LOGGER_DEBUG_ON"`
	Environment   string `env:"ENVIRONMENT, default=DEV"`

	// Server
	ServerPort          string        `env:"SERVER_PORT, default=8080"`
	CustomHandlerPort   string        `env:"FUNCTIONS_CUSTOMHANDLER_PORT"`
	FunctionName        string        `env:"FUNCTION_NAME, default=BlobRelay"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD, default=30s"`

	// Identity
	TokenSource      string `env:"TOKEN_SOURCE, default=msi"`
	IdentityEndpoint string `env:"MSI_ENDPOINT"`
	IdentityHeader   string `env:"MSI_SECRET"`
	IdentityClientId string `env:"MSI_CLIENT_ID"`

	// Vault
	VaultBaseUrl         string `env:"VAULT_BASE_URL"`
	StorageKeySecretName string `env:"STORAGE_KEY_SECRET_NAME, default=storageaccountkey"`
	AccessKeySecretName  string `env:"ACCESS_KEY_SECRET_NAME, default=ACCESSKEYRBI"`

	// Source and archive storage
	StorageAccountName      string        `env:"STORAGE_ACCOUNT_NAME"`
	StorageEndpoint         string        `env:"STORAGE_ENDPOINT"`
	SourceContainer         string        `env:"SOURCE_CONTAINER"`
	ArchiveContainer        string        `env:"ARCHIVE_CONTAINER"`
	ArchiveConnectionString string        `env:"adlcertadls2storage"`
	Archive                 ArchiveConfig `env:", prefix=ARCHIVE_POLL_"`
	SourceSASExpiry         time.Duration `env:"SOURCE_SAS_EXPIRY"`
	SourceHealthCheck       bool          `env:"SOURCE_HEALTH_CHECK"`
	ScratchDir              string        `env:"SCRATCH_DIR, default=/tmp"`

	// Destination
	BucketName     string `env:"Rbi_bucket_name"`
	AccessKeyId    string `env:"ACCESS_KEY"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION, default=us-east-1"`
	UploadPartSize int64  `env:"S3_UPLOAD_PART_SIZE_MB, default=5"`

	// Duplicate delivery guard
	RedisLockURI string        `env:"REDIS_CONNECTION_STRING"`
	LockExpiry   time.Duration `env:"LOCK_EXPIRY, default=30m"`

	// Events and reports
	SubscriberConnection *AzureQueueConfig `env:", prefix=SUBSCRIBER_, noinit"`
	PublisherConnection  *AzureQueueConfig `env:", prefix=PUBLISHER_, noinit"`
	SNSReporterEventArn  string            `env:"SNS_REPORTER_EVENT_ARN"`
	QueuePollInterval    time.Duration     `env:"QUEUE_POLL_INTERVAL, default=30s"`

	// Local run mode
	LocalSourceFolder      string `env:"LOCAL_SOURCE_FOLDER, default=./uploads/source"`
	LocalArchiveFolder     string `env:"LOCAL_ARCHIVE_FOLDER, default=./uploads/archive"`
	LocalDestinationFolder string `env:"LOCAL_DESTINATION_FOLDER, default=./uploads/destination"`
	LocalReportsFolder     string `env:"LOCAL_REPORTS_FOLDER, default=./uploads/reports"`
} // .AppConfig

type ArchiveConfig struct {
	MaxAttempts  int           `env:"MAX_ATTEMPTS, default=10"`
	PollInterval time.Duration `env:"INTERVAL, default=10s"`
}

type AzureQueueConfig struct {
	ConnectionString string `env:"CONNECTION_STRING"`
	Topic            string `env:"TOPIC"`
	Queue            string `env:"QUEUE"`
	Subscription     string `env:"SUBSCRIPTION"`
	MaxMessages      int    `env:"MAX_MESSAGES"`
}

func (conf *AppConfig) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jsonResp, err := json.Marshal(RootResp{
		System:     "DEX",
		DexProduct: "UPLOAD API",
		DexApp:     "blob relay",
		ServerTime: time.Now().Format(time.RFC3339Nano),
	}) // .jsonResp
	if err != nil {
		errMsg := "error marshal json for root response"
		logger.Error(errMsg, "error", err.Error())
		http.Error(w, errMsg, http.StatusInternalServerError)
		return
	} // .if

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonResp)
}

// SourceEndpoint is the blob service url for the source storage account.
func (conf *AppConfig) SourceEndpoint() string {
	if conf.StorageEndpoint != "" {
		return conf.StorageEndpoint
	}
	return fmt.Sprintf(models.BLOB_ENDPOINT_PATTERN, conf.StorageAccountName)
}

// CheckRelay validates the values every cloud relay invocation depends on.
func (conf *AppConfig) CheckRelay() error {
	errs := []error{}
	required := map[string]string{
		"StorageAccountName": conf.StorageAccountName,
		"SourceContainer":    conf.SourceContainer,
		"ArchiveContainer":   conf.ArchiveContainer,
		"BucketName":         conf.BucketName,
		"VaultBaseUrl":       conf.VaultBaseUrl,
	}
	for name, val := range required {
		if strings.TrimSpace(val) == "" {
			errs = append(errs, &MissingConfigError{ConfigName: name})
		}
	}

	switch conf.TokenSource {
	case TokenSourceMSI:
		if conf.IdentityEndpoint == "" {
			errs = append(errs, &MissingConfigError{ConfigName: "IdentityEndpoint"})
		}
		if conf.IdentityHeader == "" {
			errs = append(errs, &MissingConfigError{ConfigName: "IdentityHeader"})
		}
	case TokenSourceAzIdentity:
	default:
		errs = append(errs, &InvalidConfigError{ConfigName: "TokenSource", Reason: fmt.Sprintf("unknown token source %q", conf.TokenSource)})
	}

	if conf.Archive.MaxAttempts < 1 {
		errs = append(errs, &InvalidConfigError{ConfigName: "Archive.MaxAttempts", Reason: fmt.Sprintf("archive poll max attempts must be positive, got %d", conf.Archive.MaxAttempts)})
	}
	return errors.Join(errs...)
}

func (qc *AzureQueueConfig) Check() error {
	errs := []error{}
	if qc.ConnectionString == "" {
		errs = append(errs, &MissingConfigError{ConfigName: "ConnectionString"})
	}
	if qc.Queue == "" && qc.Topic == "" {
		errs = append(errs, &MissingConfigError{ConfigName: "Queue or Topic"})
	}
	if qc.Queue == "" && qc.Topic != "" && qc.Subscription == "" {
		errs = append(errs, &MissingConfigError{ConfigName: "Subscription"})
	}
	return errors.Join(errs...)
}

var LoadedConfig = &AppConfig{}

func Handler() http.Handler {
	return LoadedConfig
}

// ParseConfig loads app configuration based on environment variables and returns AppConfig struct
func ParseConfig(ctx context.Context) (AppConfig, error) {

	var ac AppConfig
	if err := envconfig.Process(ctx, &ac); err != nil {
		return AppConfig{}, err
	} // .if

	if ac.SubscriberConnection != nil {
		if err := ac.SubscriberConnection.Check(); err != nil {
			return AppConfig{}, fmt.Errorf("missing required values for subscribing to Azure Service Bus: %w", err)
		}
	}

	if ac.PublisherConnection != nil {
		if err := ac.PublisherConnection.Check(); err != nil {
			return AppConfig{}, fmt.Errorf("missing required values for publishing to Azure Service Bus: %w", err)
		}
	}

	// functions host hands the port over through its own variable
	if ac.CustomHandlerPort != "" {
		ac.ServerPort = ac.CustomHandlerPort
	}

	LoadedConfig = &ac
	return ac, nil
} // .ParseConfig
