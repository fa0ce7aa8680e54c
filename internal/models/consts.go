package models

const (
	STATUS_UP         = "UP"
	STATUS_DEGRADED   = "DEGRADED"
	STATUS_DOWN       = "DOWN"
	HEALTH_ISSUE_NONE = "None reported"
	//
	AZ_BLOB_CLIENT_NA = "error: client not available, check config"
	S3_CLIENT_NA      = "error: S3 client not available, check config"
	//
	SERVICE_BUS  = "Azure Service Bus"
	REDIS_LOCKER = "Redis Locker"

	SOURCE_STORAGE_HEALTH_PREFIX  = "Source storage"
	ARCHIVE_STORAGE_HEALTH_PREFIX = "Archive storage"
	DESTINATION_HEALTH_PREFIX     = "Destination bucket"

	VAULT_RESOURCE_URI    = "https://vault.azure.net"
	MSI_API_VERSION       = "2017-09-01"
	VAULT_API_VERSION     = "2016-10-01"
	BLOB_ENDPOINT_PATTERN = "https://%s.blob.core.windows.net"
) // .const
