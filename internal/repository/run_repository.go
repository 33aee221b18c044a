package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tamzid2001/docuflux/internal/domain"

	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	runsTable       = "extraction_runs"
	DefaultRunLimit = 20
	MaxRunLimit     = 100
)

// ClampLimit bounds a requested page size to [1, MaxRunLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRunLimit
	}
	if limit > MaxRunLimit {
		return MaxRunLimit
	}
	return limit
}

// MemoryRunRepository keeps run records in process memory, newest first on read.
type MemoryRunRepository struct {
	mu      sync.RWMutex
	records []domain.RunRecord
	max     int
}

// NewMemoryRunRepository keeps at most max records, dropping the oldest.
func NewMemoryRunRepository(max int) *MemoryRunRepository {
	if max <= 0 {
		max = 1000
	}
	return &MemoryRunRepository{max: max}
}

func (r *MemoryRunRepository) Record(ctx context.Context, record *domain.RunRecord) error {
	if record == nil || record.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "run record must have an id"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	if len(r.records) > r.max {
		r.records = r.records[len(r.records)-r.max:]
	}
	return nil
}

func (r *MemoryRunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	limit = ClampLimit(limit)
	r.mu.RLock()
	sorted := append([]domain.RunRecord(nil), r.records...)
	r.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]*domain.RunRecord, len(sorted))
	for i := range sorted {
		out[i] = &sorted[i]
	}
	return out, nil
}

// SupabaseRunRepository writes run summaries to the extraction_runs table.
type SupabaseRunRepository struct {
	db     *supabase.Client
	logger domain.Logger
}

func NewSupabaseRunRepository(db *supabase.Client, logger domain.Logger) *SupabaseRunRepository {
	return &SupabaseRunRepository{db: db, logger: logger}
}

func (r *SupabaseRunRepository) Record(ctx context.Context, record *domain.RunRecord) error {
	if r.db == nil {
		return domain.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := r.db.From(runsTable).Insert(record, false, "", "minimal", "").Execute()
	if err != nil {
		r.logger.Error("Failed to insert run record", err, "run_id", record.ID)
		return fmt.Errorf("failed to record run %s: %w", record.ID, err)
	}
	return nil
}

func (r *SupabaseRunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	if r.db == nil {
		return nil, domain.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := r.db.From(runsTable).
		Select("*", "", false).
		Order("started_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(ClampLimit(limit), "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var records []*domain.RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode runs: %w", err)
	}
	return records, nil
}
