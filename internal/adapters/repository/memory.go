package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/pkg/logger"
	"github.com/okian/usercf/pkg/metrics"
)

// MemoryStore keeps ratings in a map guarded by a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	table   model.RatingTable
	ratings int
	closed  bool

	log     logger.Logger
	updater gaugeUpdater
}

// NewMemoryStore constructs an empty in-memory store. Gauges are refreshed
// in the background until Close is called or ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemoryStore{
		table: make(model.RatingTable),
		log:   o.log,
	}
	s.updater.start(ctx, o.metricsUpdateInterval, s)
	return s
}

// Put implements Store.Put.
func (s *MemoryStore) Put(ctx context.Context, ev model.RatingEvent) error {
	if err := validateEvent(ev); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_rating")
		return err
	}
	start := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.table.Rating(ev.UserID, ev.ItemID); !ok {
		s.ratings++
	}
	s.table.Set(ev.UserID, ev.ItemID, ev.Rating)
	s.mu.Unlock()

	metrics.RecordStoreUpdateLatency(msSince(start))
	return nil
}

// Snapshot implements Store.Snapshot.
func (s *MemoryStore) Snapshot(ctx context.Context) (model.RatingTable, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	snap := s.table.Clone()
	metrics.RecordStoreSnapshotLatency(msSince(start))
	return snap, nil
}

// User implements Store.User.
func (s *MemoryStore) User(ctx context.Context, userID string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.table[userID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("%w: %q", ErrNotFound, userID)
	}
	out := make(map[string]float64, len(items))
	for item, r := range items {
		out[item] = r
	}
	return out, nil
}

// CountUsers implements Store.CountUsers.
func (s *MemoryStore) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table), nil
}

// CountRatings implements Store.CountRatings.
func (s *MemoryStore) CountRatings(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ratings, nil
}

// Load implements Store.Load.
func (s *MemoryStore) Load(ctx context.Context, table model.RatingTable) error {
	for user, items := range table {
		for item, r := range items {
			if err := validateEvent(model.RatingEvent{UserID: user, ItemID: item, Rating: r}); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for user, items := range table {
		for item, r := range items {
			if _, ok := s.table.Rating(user, item); !ok {
				s.ratings++
			}
			s.table.Set(user, item, r)
		}
	}
	s.log.Info(ctx, "ratings loaded",
		logger.Int("users", len(s.table)),
		logger.Int("ratings", s.ratings),
	)
	return nil
}

// Close stops the background gauge updater.
func (s *MemoryStore) Close() error {
	s.updater.close()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
