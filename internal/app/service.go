// Package service wires the rating store, the ingestion pipeline and the
// recommendation engine into the operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/usercf/internal/adapters/mq/queue"
	"github.com/okian/usercf/internal/adapters/mq/worker"
	"github.com/okian/usercf/internal/adapters/repository"
	"github.com/okian/usercf/internal/domain/dedupe"
	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/internal/domain/recommend"
	"github.com/okian/usercf/internal/domain/similarity"
	"github.com/okian/usercf/internal/domain/types"
	"github.com/okian/usercf/pkg/logger"
	"github.com/okian/usercf/pkg/metrics"
)

// Submission reports what happened to a submitted rating.
type Submission struct {
	EventID   string
	Duplicate bool
}

// Service implements the API dependencies for the recommendation service.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	engine  *recommend.Engine

	// Configuration
	workerCount       int
	queueSize         int
	dedupeSize        int
	storeKind         string
	storeDir          string
	defaultKernel     string
	maxSimilarUsers   int
	similarityWorkers int

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU(),
		queueSize:         100_000,
		dedupeSize:        50_000,
		storeKind:         repository.KindMemory,
		defaultKernel:     similarity.KernelPearson,
		maxSimilarUsers:   100,
		similarityWorkers: 1,
		logger:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the ingestion workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if _, err := similarity.Lookup(s.defaultKernel); err != nil {
		return fmt.Errorf("default kernel: %w", err)
	}

	s.logger.Info(ctx, "starting recommendation service...")

	store, err := repository.New(ctx, s.storeKind, s.storeDir,
		repository.WithLogger(s.logger.Named("store")),
	)
	if err != nil {
		return fmt.Errorf("open %s store: %w", s.storeKind, err)
	}
	s.store = store
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.engine = recommend.New(
		recommend.WithWorkers(s.similarityWorkers),
		recommend.WithLogger(s.logger.Named("recommend")),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store, s.logger)
	// Workers outlive ctx so Stop can drain every accepted rating into the store.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "recommendation service started",
		logger.String("store", s.storeKind),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("defaultKernel", s.defaultKernel),
	)
	return nil
}

// Stop drains queued ratings into the store and closes it. It waits for
// in-flight submissions; later ones fail with ErrNotStarted.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping recommendation service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "recommendation service stopped")
	return errors.Join(errs...)
}

// SubmitRating validates a rating, drops duplicates by event id and queues
// the rest for the workers. Missing event ids and timestamps are generated.
func (s *Service) SubmitRating(ctx context.Context, ev model.RatingEvent) (Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return Submission{}, ErrNotStarted
	}

	ev.UserID = strings.TrimSpace(ev.UserID)
	ev.ItemID = strings.TrimSpace(ev.ItemID)
	switch {
	case ev.UserID == "" || ev.ItemID == "":
		return Submission{}, fmt.Errorf("%w: user_id and item_id are required", ErrInvalidRating)
	case strings.ContainsRune(ev.UserID, 0) || strings.ContainsRune(ev.ItemID, 0):
		return Submission{}, fmt.Errorf("%w: ids must not contain NUL", ErrInvalidRating)
	case math.IsNaN(ev.Rating) || math.IsInf(ev.Rating, 0):
		return Submission{}, fmt.Errorf("%w: rating must be a finite number", ErrInvalidRating)
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}

	if s.deduper.SeenAndRecord(ctx, ev.EventID) {
		metrics.RecordRatingDuplicate()
		s.logger.Debug(ctx, "duplicate rating skipped", logger.String("eventID", ev.EventID))
		return Submission{EventID: ev.EventID, Duplicate: true}, nil
	}
	if !s.queue.Enqueue(ctx, ev) {
		s.deduper.Unrecord(ctx, ev.EventID)
		return Submission{}, ErrBackpressure
	}

	metrics.RecordRatingSubmitted()
	return Submission{EventID: ev.EventID}, nil
}

// ResolveKernel returns kernel, or the configured default when it is empty.
func (s *Service) ResolveKernel(kernel string) string {
	if kernel == "" {
		return s.defaultKernel
	}
	return kernel
}

// Similarity scores two users over a snapshot of the store.
func (s *Service) Similarity(ctx context.Context, a, b, kernel string) (float64, error) {
	table, err := s.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	for _, user := range []string{a, b} {
		if !table.HasUser(user) {
			metrics.RecordOperationError("similarity", "unknown_user")
			return 0, &similarity.UnknownUserError{User: user}
		}
	}
	k, err := similarity.Lookup(s.ResolveKernel(kernel))
	if err != nil {
		metrics.RecordOperationError("similarity", "unsupported_kernel")
		return 0, err
	}

	start := time.Now()
	score, err := k.Similarity(table, a, b)
	if err != nil {
		return 0, err
	}
	metrics.RecordSimilarityComputations(k.Name(), 1)
	metrics.RecordOperationLatency("similarity", k.Name(), float64(time.Since(start).Microseconds())/1000)
	return score, nil
}

// SimilarUsers returns up to k users most similar to user. k is capped at
// the configured maximum.
func (s *Service) SimilarUsers(ctx context.Context, user string, k int, kernel string) ([]model.Neighbor, error) {
	table, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if k > s.maxSimilarUsers {
		k = s.maxSimilarUsers
	}
	return s.engine.FindSimilarUsers(ctx, table, user, k, s.ResolveKernel(kernel))
}

// Recommend ranks the items user has not rated.
func (s *Service) Recommend(ctx context.Context, user, kernel string) (recommend.Recommendations, error) {
	table, err := s.snapshot(ctx)
	if err != nil {
		return recommend.Recommendations{}, err
	}
	return s.engine.GenerateRecommendations(ctx, table, user, s.ResolveKernel(kernel))
}

// UserRatings returns the stored ratings of user.
func (s *Service) UserRatings(ctx context.Context, user string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	ratings, err := s.store.User(ctx, user)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &similarity.UnknownUserError{User: user}
	}
	return ratings, err
}

// Seed bulk-loads a rating table, bypassing the queue.
func (s *Service) Seed(ctx context.Context, table model.RatingTable) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	if err := s.store.Load(ctx, table); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	s.publishCounts(ctx)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		Started:       s.started,
		Store:         s.storeKind,
		Workers:       s.workerCount,
		QueueCapacity: s.queueSize,
		DefaultKernel: s.defaultKernel,
		Kernels:       similarity.Names(),
	}
	if !s.started {
		return stats
	}

	users, ratings := s.publishCounts(ctx)
	stats.Users = users
	stats.Ratings = ratings
	stats.QueueLength = s.queue.Len(ctx)
	stats.Workers = s.pool.Size()
	stats.Applied = s.pool.Applied()
	stats.DedupeSize = s.deduper.Size()
	return stats
}

func (s *Service) publishCounts(ctx context.Context) (users, ratings int) {
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		s.logger.Warn(ctx, "count users failed", logger.Error(err))
	}
	ratings, err = s.store.CountRatings(ctx)
	if err != nil {
		s.logger.Warn(ctx, "count ratings failed", logger.Error(err))
	}
	metrics.UpdateTotalUsers(users)
	metrics.UpdateTotalRatings(ratings)
	return users, ratings
}

// snapshot copies the current ratings so engines work on a consistent table
// while workers keep writing.
func (s *Service) snapshot(ctx context.Context) (model.RatingTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	table, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot ratings: %w", err)
	}
	return table, nil
}
