package domain

import (
	"context"
	"time"
)

// Normalizer turns an input document into the one canonical image of a run.
type Normalizer interface {
	Normalize(ctx context.Context, doc *InputDocument) (*CanonicalImage, error)
}

// VisionModel is a remote structured-extraction backend. Generate returns the raw
// JSON payload produced under the grid/description schema; it must not retry.
type VisionModel interface {
	Generate(ctx context.Context, img *CanonicalImage) ([]byte, error)
	Name() string
}

// Extractor returns a schema-validated extraction result for an image.
type Extractor interface {
	Extract(ctx context.Context, img *CanonicalImage) (*ExtractionResult, error)
}

// SpreadsheetService is the sink capability: create a spreadsheet and write rows to a range.
type SpreadsheetService interface {
	CreateSpreadsheet(ctx context.Context, title string, tabs []string) (*SinkResource, error)
	WriteRows(ctx context.Context, spreadsheetID, writeRange string, rows [][]string) error
}

// SinkWriter commits an extraction result into a new spreadsheet.
type SinkWriter interface {
	Commit(ctx context.Context, result *ExtractionResult, title string) (*SinkResource, error)
}

// PipelineRunner runs one document through normalize, extract and sink.
type PipelineRunner interface {
	Run(ctx context.Context, doc *InputDocument) *PipelineResult
}

// BatchStore keeps batch progress for polling.
type BatchStore interface {
	Save(ctx context.Context, status *BatchStatus) error
	Get(ctx context.Context, id string) (*BatchStatus, error)
}

// RunRepository persists run summaries.
type RunRepository interface {
	Record(ctx context.Context, record *RunRecord) error
	ListRecent(ctx context.Context, limit int) ([]*RunRecord, error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetMaxFileSize() int64
	GetLogLevel() string

	GetRasterScale() float64
	GetJPEGQuality() int
	GetRasterTimeout() time.Duration

	GetExtractionProvider() string
	GetExtractionModel() string
	GetExtractionTimeout() time.Duration
	GetGoogleProjectID() string
	GetGoogleLocation() string
	GetGoogleCredentialsFile() string
	GetOpenAIAPIKey() string
	GetOpenAIBaseURL() string

	GetSinkBackend() string
	GetSinkTimeout() time.Duration

	GetSupabaseURL() string
	GetSupabaseKey() string
	GetStorageBucket() string
	GetUploadDir() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int

	GetBatchWorkers() int
	GetBatchMaxFiles() int
	GetBatchTTL() time.Duration
	GetCORSAllowedOrigins() []string
}
