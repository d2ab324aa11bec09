package entity

import (
	"errors"
	"fmt"
)

// Ingestion errors. These are terminal for the ingestion call and produce no rows.
var (
	ErrEmptyInput      = errors.New("input is empty")
	ErrUnparseableFile = errors.New("file could not be parsed")
	ErrSchemaTooNew    = errors.New("dataset schema version is newer than supported")
	ErrNoPublicationID = errors.New("publication ID is required")
	ErrEmptyNewsletter = errors.New("newsletter ID is required")
)

// Query errors
var (
	ErrDatasetNotFound    = errors.New("no data imported for newsletter")
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrInvalidGranularity = errors.New("granularity must be day, week or month")
	ErrInvalidRange       = errors.New("range start is after range end")
)

// Sync errors
var (
	ErrStaleSync       = errors.New("a newer sync superseded this one")
	ErrUpstreamLimited = errors.New("upstream rate limit exceeded")
)

// MissingColumnError reports a required column absent from a header row
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// UpstreamError reports a non-2xx response from the email platform API
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}
