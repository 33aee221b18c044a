package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const batchKeyPrefix = "docuflux:batch:"

// MemoryBatchStore keeps batch progress in process memory.
type MemoryBatchStore struct {
	mu      sync.RWMutex
	batches map[string]domain.BatchStatus
}

func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{batches: make(map[string]domain.BatchStatus)}
}

func (s *MemoryBatchStore) Save(ctx context.Context, status *domain.BatchStatus) error {
	if status == nil || status.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "batch status must have an id"}
	}
	cp := *status
	cp.Items = append([]domain.BatchItem(nil), status.Items...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[status.ID] = cp
	return nil
}

func (s *MemoryBatchStore) Get(ctx context.Context, id string) (*domain.BatchStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	status.Items = append([]domain.BatchItem(nil), status.Items...)
	return &status, nil
}

// RedisBatchStore stores batch progress as JSON under a per-batch key with a TTL,
// so any replica behind the load balancer can answer a status poll.
type RedisBatchStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger domain.Logger
}

func NewRedisBatchStore(address, password string, db int, ttl time.Duration, logger domain.Logger) *RedisBatchStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisBatchStoreFromClient(rdb, ttl, logger)
}

func NewRedisBatchStoreFromClient(rdb *redis.Client, ttl time.Duration, logger domain.Logger) *RedisBatchStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisBatchStore{rdb: rdb, ttl: ttl, logger: logger}
}

// Ping checks connectivity.
func (s *RedisBatchStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisBatchStore) Save(ctx context.Context, status *domain.BatchStatus) error {
	if status == nil || status.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "batch status must have an id"}
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode batch status: %w", err)
	}
	if err := s.rdb.Set(ctx, batchKeyPrefix+status.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save batch %s: %w", status.ID, err)
	}
	return nil
}

func (s *RedisBatchStore) Get(ctx context.Context, id string) (*domain.BatchStatus, error) {
	payload, err := s.rdb.Get(ctx, batchKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch %s: %w", id, err)
	}

	var status domain.BatchStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		s.logger.Warn("Discarding unreadable batch status", "batch_id", id, "error", err)
		return nil, fmt.Errorf("failed to decode batch %s: %w", id, err)
	}
	return &status, nil
}

func (s *RedisBatchStore) Close() error {
	return s.rdb.Close()
}
