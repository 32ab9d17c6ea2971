// Package repository stores submitted ratings and hands out consistent
// snapshots of them as a rating table.
package repository

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/pkg/metrics"
)

// Store kinds accepted by New.
const (
	KindMemory = "memory"
	KindBadger = "badger"
)

// Store provides read/write access to the rating state.
type Store interface {
	// Put records a rating, replacing any earlier rating of the same item by the same user.
	Put(ctx context.Context, ev model.RatingEvent) error

	// Snapshot returns a deep copy of every rating. Later writes do not affect it.
	Snapshot(ctx context.Context) (model.RatingTable, error)

	// User returns the ratings of one user.
	// Returns ErrNotFound if the user has no ratings.
	User(ctx context.Context, userID string) (map[string]float64, error)

	// CountUsers returns the number of users with at least one rating.
	CountUsers(ctx context.Context) (int, error)

	// CountRatings returns the number of stored ratings.
	CountRatings(ctx context.Context) (int, error)

	// Load imports every rating of table in one batch.
	Load(ctx context.Context, table model.RatingTable) error

	Close() error
}

// New opens a store of the given kind. dir is used by the badger store only;
// an empty dir keeps badger in memory.
func New(ctx context.Context, kind, dir string, opts ...Option) (Store, error) {
	switch kind {
	case KindMemory:
		return NewMemoryStore(ctx, opts...), nil
	case KindBadger:
		return OpenBadgerStore(ctx, dir, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, kind)
	}
}

// validateEvent rejects ratings the rest of the system cannot represent.
func validateEvent(ev model.RatingEvent) error {
	switch {
	case ev.UserID == "" || ev.ItemID == "":
		return fmt.Errorf("%w: user and item ids are required", ErrInvalidRating)
	case strings.ContainsRune(ev.UserID, keySeparator) || strings.ContainsRune(ev.ItemID, keySeparator):
		return fmt.Errorf("%w: ids must not contain NUL", ErrInvalidRating)
	case math.IsNaN(ev.Rating) || math.IsInf(ev.Rating, 0):
		return fmt.Errorf("%w: rating must be finite", ErrInvalidRating)
	}
	return nil
}

// gaugeUpdater periodically publishes user and rating counts.
type gaugeUpdater struct {
	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

func (g *gaugeUpdater) start(ctx context.Context, interval time.Duration, s Store) {
	g.stop = make(chan struct{})
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-g.stop:
				return
			case <-ticker.C:
				publishCounts(ctx, s)
			}
		}
	}()
}

func (g *gaugeUpdater) close() {
	g.once.Do(func() {
		if g.stop != nil {
			close(g.stop)
		}
	})
	g.wg.Wait()
}

func publishCounts(ctx context.Context, s Store) {
	if users, err := s.CountUsers(ctx); err == nil {
		metrics.UpdateTotalUsers(users)
	}
	if ratings, err := s.CountRatings(ctx); err == nil {
		metrics.UpdateTotalRatings(ratings)
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
