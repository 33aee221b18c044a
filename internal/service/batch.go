package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"
	"github.com/tamzid2001/docuflux/internal/monitoring"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const batchStoreTimeout = 5 * time.Second

// BatchRunner runs independent single-document pipelines concurrently. Each item
// gets its own spreadsheet; a failing item never stops the others.
type BatchRunner struct {
	pipeline domain.PipelineRunner
	store    domain.BatchStore
	workers  int
	maxFiles int
	metrics  *monitoring.Metrics
	logger   domain.Logger
	now      func() time.Time

	mu      sync.Mutex
	closing bool
	running sync.WaitGroup
}

// NewBatchRunner creates a new batch runner. store and metrics may be nil.
func NewBatchRunner(
	pipeline domain.PipelineRunner,
	store domain.BatchStore,
	workers int,
	maxFiles int,
	metrics *monitoring.Metrics,
	logger domain.Logger,
) *BatchRunner {
	if workers <= 0 {
		workers = 4
	}
	if maxFiles <= 0 {
		maxFiles = 10
	}
	return &BatchRunner{
		pipeline: pipeline,
		store:    store,
		workers:  workers,
		maxFiles: maxFiles,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Validate checks the batch size limits.
func (b *BatchRunner) Validate(docs []*domain.InputDocument) error {
	if len(docs) == 0 {
		return domain.ErrEmptyBatch
	}
	if len(docs) > b.maxFiles {
		return fmt.Errorf("%w: %d files, limit is %d", domain.ErrTooManyFiles, len(docs), b.maxFiles)
	}
	return nil
}

// Run processes the batch and waits for every item.
func (b *BatchRunner) Run(ctx context.Context, docs []*domain.InputDocument) (*domain.BatchResult, error) {
	if err := b.Validate(docs); err != nil {
		return nil, err
	}
	tracker := b.newTracker(uuid.NewString(), docs)
	b.publish(ctx, tracker.snapshot())
	return b.execute(ctx, tracker, docs), nil
}

// Submit starts the batch in the background and returns its initial status. The
// batch keeps running after ctx ends; poll progress with Status.
func (b *BatchRunner) Submit(ctx context.Context, docs []*domain.InputDocument) (*domain.BatchStatus, error) {
	if err := b.Validate(docs); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, fmt.Errorf("batch store not configured")
	}
	if !b.track() {
		return nil, domain.ErrShuttingDown
	}

	tracker := b.newTracker(uuid.NewString(), docs)
	initial := tracker.snapshot()
	if err := b.store.Save(ctx, initial); err != nil {
		b.running.Done()
		return nil, fmt.Errorf("failed to save batch status: %w", err)
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		defer b.running.Done()
		b.execute(detached, tracker, docs)
	}()

	return initial, nil
}

// track registers a background batch unless Shutdown has started.
func (b *BatchRunner) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		return false
	}
	b.running.Add(1)
	return true
}

// Shutdown stops accepting submitted batches and waits for the ones in flight.
// It returns ctx.Err() if they are still running when ctx ends.
func (b *BatchRunner) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Batches still running at shutdown", "error", ctx.Err())
		return ctx.Err()
	}
}

// Status returns the latest published progress of a batch.
func (b *BatchRunner) Status(ctx context.Context, id string) (*domain.BatchStatus, error) {
	if b.store == nil {
		return nil, domain.ErrBatchNotFound
	}
	return b.store.Get(ctx, id)
}

func (b *BatchRunner) execute(ctx context.Context, tracker *batchTracker, docs []*domain.InputDocument) *domain.BatchResult {
	b.logger.Info("Batch started", "batch_id", tracker.id, "items", len(docs), "workers", b.workers)
	results := make([]*domain.PipelineResult, len(docs))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, doc := range docs {
		g.Go(func() error {
			res := b.pipeline.Run(ctx, doc)
			results[i] = res
			if b.metrics != nil {
				outcome := "success"
				if !res.Succeeded() {
					outcome = "failure"
				}
				b.metrics.IncBatchItem(outcome)
			}
			b.publishProgress(ctx, tracker, tracker.complete(i, res, b.now()))
			return nil
		})
	}
	_ = g.Wait()

	agg := &domain.BatchResult{ID: tracker.id, Results: results}
	for _, res := range results {
		if res.Succeeded() {
			agg.Succeeded++
			if agg.FirstURL == "" {
				agg.FirstURL = res.SheetURL()
			}
		} else {
			agg.Failed++
		}
	}
	b.logger.Info("Batch finished", "batch_id", tracker.id, "succeeded", agg.Succeeded, "failed", agg.Failed)
	return agg
}

func (b *BatchRunner) publish(ctx context.Context, status *domain.BatchStatus) {
	if b.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), batchStoreTimeout)
	defer cancel()
	if err := b.store.Save(saveCtx, status); err != nil {
		b.logger.Warn("Failed to publish batch progress", "batch_id", status.ID, "error", err)
	}
}

// publishProgress drops snapshots older than the last one published, so a slow
// writer cannot roll progress back.
func (b *BatchRunner) publishProgress(ctx context.Context, t *batchTracker, status *domain.BatchStatus) {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	if status.Completed < t.published {
		return
	}
	t.published = status.Completed
	b.publish(ctx, status)
}

// batchTracker serializes progress updates from concurrent items.
type batchTracker struct {
	mu     sync.Mutex
	id     string
	status domain.BatchStatus

	publishMu sync.Mutex
	published int
}

func (b *BatchRunner) newTracker(id string, docs []*domain.InputDocument) *batchTracker {
	now := b.now()
	items := make([]domain.BatchItem, len(docs))
	for i, doc := range docs {
		items[i] = domain.BatchItem{Index: i, Name: doc.DisplayName}
	}
	return &batchTracker{
		id: id,
		status: domain.BatchStatus{
			ID:        id,
			State:     domain.BatchRunning,
			Total:     len(docs),
			Items:     items,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (t *batchTracker) complete(index int, res *domain.PipelineResult, now time.Time) *domain.BatchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	item := &t.status.Items[index]
	item.Done = true
	item.SheetURL = res.SheetURL()
	if res.Succeeded() {
		t.status.Succeeded++
		if t.status.FirstURL == "" {
			t.status.FirstURL = item.SheetURL
		}
	} else {
		t.status.Failed++
		item.Stage = res.Failure.Stage
		item.Kind = res.Failure.Kind
		item.Reason = res.Failure.Reason
	}
	t.status.Completed++
	t.status.UpdatedAt = now
	if t.status.Completed == t.status.Total {
		t.status.State = domain.BatchComplete
	}
	return t.snapshotLocked()
}

func (t *batchTracker) snapshot() *domain.BatchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *batchTracker) snapshotLocked() *domain.BatchStatus {
	s := t.status
	s.Items = append([]domain.BatchItem(nil), t.status.Items...)
	return &s
}
