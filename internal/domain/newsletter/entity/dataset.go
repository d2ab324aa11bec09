package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the persisted Dataset layout version
const SchemaVersion = 1

// SourceKind tags which ingestion adapter produced a Dataset
type SourceKind string

const (
	SourceBulkText   SourceKind = "bulk_text"
	SourceMultiSheet SourceKind = "multi_sheet"
	SourceAPISync    SourceKind = "api_sync"
)

// WarningCode classifies a non-fatal ingestion problem
type WarningCode string

const (
	WarningMissingSheet  WarningCode = "missing_sheet"
	WarningMissingColumn WarningCode = "missing_column"
	WarningSkippedRows   WarningCode = "skipped_rows"
	WarningPartialFetch  WarningCode = "partial_fetch"
)

// Warning is a non-fatal ingestion problem that still leaves a usable result
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// Dataset is the uniform output of every ingestion adapter and the unit of persistence.
// Growth and Audience are nil when the source does not provide them.
type Dataset struct {
	Version      int                `json:"version"`
	Kind         SourceKind         `json:"kind"`
	NewsletterID string             `json:"newsletter_id"`
	Posts        []Post             `json:"posts"`
	Growth       []GrowthBucket     `json:"growth"`
	Audience     []AudienceSnapshot `json:"audience"`
	Warnings     []Warning          `json:"warnings"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Warn appends a formatted warning
func (d *Dataset) Warn(code WarningCode, format string, args ...any) {
	d.Warnings = append(d.Warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// EncodeDataset serializes a dataset, stamping the current schema version
func EncodeDataset(ds *Dataset) ([]byte, error) {
	out := *ds
	out.Version = SchemaVersion
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	return data, nil
}

// DecodeDataset deserializes a dataset. Blobs written before versioning decode as version 1.
func DecodeDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	if ds.Version == 0 {
		ds.Version = SchemaVersion
	}
	if ds.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrSchemaTooNew, ds.Version)
	}
	return &ds, nil
}
