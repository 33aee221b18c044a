package config

import (
	"strings"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"

	"github.com/spf13/viper"
)

const (
	defaultMaxFileSize   int64 = 50 * 1024 * 1024 // 50MB
	defaultRasterScale         = 2.0
	defaultJPEGQuality         = 90
	defaultVertexModel         = "gemini-2.0-flash-001"
	defaultOpenAIModel         = "gpt-4o"
	defaultCORSOrigins         = "http://localhost:5173,http://localhost:4173,http://localhost:3000"
	ProviderVertex             = "vertex"
	ProviderOpenAI             = "openai"
	SinkBackendSheets          = "sheets"
	SinkBackendMemory          = "memory"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort  string
	MaxFileSize int64
	LogLevel    string

	RasterScale   float64
	JPEGQuality   int
	RasterTimeout time.Duration

	ExtractionProvider    string
	ExtractionModel       string
	ExtractionTimeout     time.Duration
	GoogleProjectID       string
	GoogleLocation        string
	GoogleCredentialsFile string
	OpenAIAPIKey          string
	OpenAIBaseURL         string

	SinkBackend string
	SinkTimeout time.Duration

	SupabaseURL   string
	SupabaseKey   string
	StorageBucket string
	UploadDir     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BatchWorkers       int
	BatchMaxFiles      int
	BatchTTL           time.Duration
	CORSAllowedOrigins []string
}

// NewConfig reads configuration from the environment, applying defaults for
// anything unset or out of range.
func NewConfig() domain.Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("server_port", "8080")
	v.SetDefault("max_file_size", defaultMaxFileSize)
	v.SetDefault("log_level", "info")
	v.SetDefault("raster_scale", defaultRasterScale)
	v.SetDefault("jpeg_quality", defaultJPEGQuality)
	v.SetDefault("raster_timeout_seconds", 30)
	v.SetDefault("extraction_provider", ProviderVertex)
	v.SetDefault("extraction_timeout_seconds", 60)
	v.SetDefault("google_location", "us-central1")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("sink_backend", SinkBackendSheets)
	v.SetDefault("sink_timeout_seconds", 30)
	v.SetDefault("supabase_storage_bucket", "uploads")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("redis_db", 0)
	v.SetDefault("batch_workers", 4)
	v.SetDefault("batch_max_files", 10)
	v.SetDefault("batch_ttl_minutes", 60)
	v.SetDefault("cors_allowed_origins", defaultCORSOrigins)

	// Cloud Run (and many PaaS) provide the listening port via PORT.
	// Keep SERVER_PORT for local/dev compatibility.
	port := v.GetString("port")
	if port == "" {
		port = v.GetString("server_port")
	}

	provider := strings.ToLower(v.GetString("extraction_provider"))
	model := v.GetString("extraction_model")
	if model == "" {
		model = defaultVertexModel
		if provider == ProviderOpenAI {
			model = defaultOpenAIModel
		}
	}

	return &AppConfig{
		ServerPort:  port,
		MaxFileSize: positiveInt64(v.GetInt64("max_file_size"), defaultMaxFileSize),
		LogLevel:    v.GetString("log_level"),

		RasterScale:   atLeast(v.GetFloat64("raster_scale"), 1, defaultRasterScale),
		JPEGQuality:   qualityOrDefault(v.GetInt("jpeg_quality")),
		RasterTimeout: seconds(v.GetInt("raster_timeout_seconds"), 30),

		ExtractionProvider:    provider,
		ExtractionModel:       model,
		ExtractionTimeout:     seconds(v.GetInt("extraction_timeout_seconds"), 60),
		GoogleProjectID:       v.GetString("google_project_id"),
		GoogleLocation:        v.GetString("google_location"),
		GoogleCredentialsFile: v.GetString("google_credentials_file"),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		OpenAIBaseURL:         strings.TrimRight(v.GetString("openai_base_url"), "/"),

		SinkBackend: strings.ToLower(v.GetString("sink_backend")),
		SinkTimeout: seconds(v.GetInt("sink_timeout_seconds"), 30),

		SupabaseURL:   v.GetString("supabase_url"),
		SupabaseKey:   v.GetString("supabase_anon_key"),
		StorageBucket: v.GetString("supabase_storage_bucket"),
		UploadDir:     v.GetString("upload_dir"),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		BatchWorkers:       positiveInt(v.GetInt("batch_workers"), 4),
		BatchMaxFiles:      positiveInt(v.GetInt("batch_max_files"), 10),
		BatchTTL:           time.Duration(positiveInt(v.GetInt("batch_ttl_minutes"), 60)) * time.Minute,
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetMaxFileSize returns the maximum allowed file size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetRasterScale returns the PDF render scale relative to 72 DPI
func (c *AppConfig) GetRasterScale() float64 {
	return c.RasterScale
}

// GetJPEGQuality returns the JPEG quality used for rendered pages
func (c *AppConfig) GetJPEGQuality() int {
	return c.JPEGQuality
}

func (c *AppConfig) GetRasterTimeout() time.Duration {
	return c.RasterTimeout
}

// GetExtractionProvider returns "vertex" or "openai"
func (c *AppConfig) GetExtractionProvider() string {
	return c.ExtractionProvider
}

func (c *AppConfig) GetExtractionModel() string {
	return c.ExtractionModel
}

func (c *AppConfig) GetExtractionTimeout() time.Duration {
	return c.ExtractionTimeout
}

// GetGoogleProjectID returns the Google Cloud project used by Vertex AI
func (c *AppConfig) GetGoogleProjectID() string {
	return c.GoogleProjectID
}

func (c *AppConfig) GetGoogleLocation() string {
	return c.GoogleLocation
}

// GetGoogleCredentialsFile returns an optional service account key path.
// Empty means application default credentials.
func (c *AppConfig) GetGoogleCredentialsFile() string {
	return c.GoogleCredentialsFile
}

func (c *AppConfig) GetOpenAIAPIKey() string {
	return c.OpenAIAPIKey
}

func (c *AppConfig) GetOpenAIBaseURL() string {
	return c.OpenAIBaseURL
}

// GetSinkBackend returns "sheets" or "memory"
func (c *AppConfig) GetSinkBackend() string {
	return c.SinkBackend
}

func (c *AppConfig) GetSinkTimeout() time.Duration {
	return c.SinkTimeout
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetStorageBucket returns the Supabase Storage bucket for raw uploads
func (c *AppConfig) GetStorageBucket() string {
	return c.StorageBucket
}

// GetUploadDir returns the local upload directory used without Supabase
func (c *AppConfig) GetUploadDir() string {
	return c.UploadDir
}

func (c *AppConfig) GetRedisAddr() string {
	return c.RedisAddr
}

func (c *AppConfig) GetRedisPassword() string {
	return c.RedisPassword
}

func (c *AppConfig) GetRedisDB() int {
	return c.RedisDB
}

// GetBatchWorkers returns the number of documents processed concurrently in a batch
func (c *AppConfig) GetBatchWorkers() int {
	return c.BatchWorkers
}

func (c *AppConfig) GetBatchMaxFiles() int {
	return c.BatchMaxFiles
}

// GetBatchTTL returns how long batch progress is kept for polling
func (c *AppConfig) GetBatchTTL() time.Duration {
	return c.BatchTTL
}

func (c *AppConfig) GetCORSAllowedOrigins() []string {
	return c.CORSAllowedOrigins
}

// Helper functions for value handling
func positiveInt64(value, defaultValue int64) int64 {
	if value <= 0 {
		return defaultValue
	}
	return value
}

func positiveInt(value, defaultValue int) int {
	if value <= 0 {
		return defaultValue
	}
	return value
}

func atLeast(value, min, defaultValue float64) float64 {
	if value < min {
		return defaultValue
	}
	return value
}

func qualityOrDefault(q int) int {
	if q < 1 || q > 100 {
		return defaultJPEGQuality
	}
	return q
}

func seconds(value, defaultValue int) time.Duration {
	return time.Duration(positiveInt(value, defaultValue)) * time.Second
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
