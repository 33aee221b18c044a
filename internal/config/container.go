package config

import (
	"context"
	"fmt"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"
	"github.com/tamzid2001/docuflux/internal/infra/gcp"
	"github.com/tamzid2001/docuflux/internal/infra/openai"
	"github.com/tamzid2001/docuflux/internal/infra/sheets"
	"github.com/tamzid2001/docuflux/internal/infra/supabase"
	"github.com/tamzid2001/docuflux/internal/infra/vertex"
	"github.com/tamzid2001/docuflux/internal/monitoring"
	"github.com/tamzid2001/docuflux/internal/repository"
	"github.com/tamzid2001/docuflux/internal/service"
	"github.com/tamzid2001/docuflux/pkg/logger"
)

const storePingTimeout = 3 * time.Second

// Container holds all application dependencies. Every handle is created once at
// startup and shared by all runs.
type Container struct {
	Config      domain.Config
	Logger      domain.Logger
	Metrics     *monitoring.Metrics
	Model       domain.VisionModel
	Sheets      domain.SpreadsheetService
	Runs        domain.RunRepository
	Batches     domain.BatchStore
	Files       domain.FileStore
	Pipeline    *service.Pipeline
	BatchRunner *service.BatchRunner

	supabase *supabase.Client
	closers  []func() error
}

// NewContainer creates a new dependency injection container from the environment
func NewContainer(ctx context.Context) (*Container, error) {
	cfg := NewConfig()
	return NewContainerWith(ctx, cfg, logger.NewLogger(cfg.GetLogLevel()))
}

// NewContainerWith wires the container from an explicit config and logger.
func NewContainerWith(ctx context.Context, cfg domain.Config, log domain.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  log,
		Metrics: monitoring.NewMetrics(),
	}

	model, err := c.newVisionModel(ctx)
	if err != nil {
		return nil, err
	}
	c.Model = model

	sheetSvc, err := c.newSpreadsheetService(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Sheets = sheetSvc
	c.supabase = c.newSupabaseClient()
	c.Runs = c.newRunRepository()
	c.Files = c.newFileStore()
	c.Batches = c.newBatchStore(ctx)

	normalizer := service.NewRasterNormalizer(service.RasterOptions{
		Scale:   cfg.GetRasterScale(),
		Quality: cfg.GetJPEGQuality(),
		Timeout: cfg.GetRasterTimeout(),
	}, log)
	extractor := service.NewExtractionClient(c.Model, cfg.GetExtractionTimeout(), log)
	sink := service.NewSpreadsheetSinkWriter(c.Sheets, cfg.GetSinkTimeout(), log)

	c.Pipeline = service.NewPipeline(normalizer, extractor, sink, c.Runs, c.Metrics, log)
	c.BatchRunner = service.NewBatchRunner(
		c.Pipeline,
		c.Batches,
		cfg.GetBatchWorkers(),
		cfg.GetBatchMaxFiles(),
		c.Metrics,
		log,
	)

	log.Info("Container ready",
		"provider", cfg.GetExtractionProvider(),
		"model", c.Model.Name(),
		"sink", cfg.GetSinkBackend(),
	)
	return c, nil
}

func (c *Container) newVisionModel(ctx context.Context) (domain.VisionModel, error) {
	switch provider := c.Config.GetExtractionProvider(); provider {
	case ProviderVertex:
		opts, err := gcp.ClientOptions(ctx, c.Config.GetGoogleCredentialsFile(), gcp.ScopeCloudPlatform)
		if err != nil {
			return nil, fmt.Errorf("vertex credentials: %w", err)
		}
		m, err := vertex.NewModel(ctx,
			c.Config.GetGoogleProjectID(),
			c.Config.GetGoogleLocation(),
			c.Config.GetExtractionModel(),
			c.Logger,
			opts...,
		)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, m.Close)
		return m, nil
	case ProviderOpenAI:
		return openai.NewModel(
			c.Config.GetOpenAIAPIKey(),
			c.Config.GetOpenAIBaseURL(),
			c.Config.GetExtractionModel(),
			nil,
			c.Logger,
		)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}
}

func (c *Container) newSpreadsheetService(ctx context.Context) (domain.SpreadsheetService, error) {
	switch backend := c.Config.GetSinkBackend(); backend {
	case SinkBackendSheets:
		opts, err := gcp.ClientOptions(ctx, c.Config.GetGoogleCredentialsFile(), gcp.ScopeSpreadsheets)
		if err != nil {
			return nil, fmt.Errorf("sheets credentials: %w", err)
		}
		return sheets.NewGoogleSheetsService(ctx, c.Logger, opts...)
	case SinkBackendMemory:
		c.Logger.Warn("Using in-memory spreadsheet sink; results are not persisted")
		return sheets.NewMemoryService(), nil
	default:
		return nil, fmt.Errorf("unknown sink backend %q", backend)
	}
}

// newSupabaseClient returns nil when Supabase is not configured or unusable.
func (c *Container) newSupabaseClient() *supabase.Client {
	url, key := c.Config.GetSupabaseURL(), c.Config.GetSupabaseKey()
	if url == "" || key == "" {
		return nil
	}
	client, err := supabase.NewClient(url, key, c.Logger)
	if err != nil {
		c.Logger.Warn("Supabase unavailable, falling back to local stores", "error", err)
		return nil
	}
	return client
}

// newRunRepository uses Supabase when configured and falls back to memory.
func (c *Container) newRunRepository() domain.RunRepository {
	if c.supabase == nil {
		return repository.NewMemoryRunRepository(0)
	}
	return repository.NewSupabaseRunRepository(c.supabase.DB(), c.Logger)
}

// newFileStore uses the Supabase Storage bucket when configured, otherwise disk.
func (c *Container) newFileStore() domain.FileStore {
	if c.supabase == nil {
		return repository.NewLocalFileStore(c.Config.GetUploadDir(), c.Logger)
	}
	return repository.NewSupabaseFileStore(c.supabase.Storage(), c.Config.GetStorageBucket(), c.Logger)
}

// newBatchStore uses Redis when configured and reachable, otherwise memory.
func (c *Container) newBatchStore(ctx context.Context) domain.BatchStore {
	addr := c.Config.GetRedisAddr()
	if addr == "" {
		return repository.NewMemoryBatchStore()
	}
	store := repository.NewRedisBatchStore(addr, c.Config.GetRedisPassword(), c.Config.GetRedisDB(), c.Config.GetBatchTTL(), c.Logger)

	pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		c.Logger.Warn("Redis unavailable, keeping batch progress in memory", "addr", addr, "error", err)
		_ = store.Close()
		return repository.NewMemoryBatchStore()
	}
	c.closers = append(c.closers, store.Close)
	c.Logger.Info("Redis batch store connected", "addr", addr)
	return store
}

// Close releases backend clients and flushes the logger.
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	if s, ok := c.Logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return firstErr
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}
