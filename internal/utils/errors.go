package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is empty")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- export configuration ------------------
var (
	ErrExportBackendDisabled = errors.New("brain commerce backend is disabled")
	ErrExportEmptyBaseURL    = errors.New("ingest base URL is empty")
	ErrExportEmptyAPIKey     = errors.New("ingest API key is empty")
	ErrExportEmptyMapping    = errors.New("product attribute mapping is empty")
	ErrExportEmptySiteID     = errors.New("site id is empty")
)

// ----------------- ingest transport ------------------
var (
	ErrIngestRejected    = errors.New("ingest service rejected the request")
	ErrIngestResetFailed = errors.New("ingest collection reset failed")
)
