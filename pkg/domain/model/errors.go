package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared across layers. Wrap them with goerr.Wrap and match
// with errors.Is.
var (
	// ErrConfiguration means the embedding provider is not configured
	ErrConfiguration = goerr.New("embedding provider is not configured")
	// ErrProvider means the embedding provider failed or returned malformed data
	ErrProvider = goerr.New("embedding provider error")
	// ErrProviderTimeout means the embedding provider did not answer in time
	ErrProviderTimeout = goerr.New("embedding provider timed out")
	// ErrValidation means required input is missing or malformed
	ErrValidation = goerr.New("validation error")
	// ErrUnauthorized means the caller is not an authenticated actor
	ErrUnauthorized = goerr.New("unauthorized")
	// ErrStore means the persistence layer failed
	ErrStore = goerr.New("store error")
	// ErrDimensionMismatch means two vectors of unequal length were compared
	ErrDimensionMismatch = goerr.New("vector dimension mismatch")

	ErrEntryNotFound = goerr.New("entry not found")
	ErrTagNotFound   = goerr.New("tag not found")
	ErrDuplicateTag  = goerr.New("tag name already exists")
)

// Context keys for error values
const (
	EntryIDKey   = "entry_id"
	TagIDKey     = "tag_id"
	TagNameKey   = "tag_name"
	DimensionKey = "dimension"
)
