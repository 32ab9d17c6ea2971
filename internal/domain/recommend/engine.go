// Package recommend ranks users by similarity to a target user and turns the
// ratings of similar users into a ranked list of unseen items.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/internal/domain/similarity"
	"github.com/okian/usercf/pkg/logger"
	"github.com/okian/usercf/pkg/metrics"
)

// NoRecommendationsMessage is shown to users when a request yields no items.
const NoRecommendationsMessage = "No recommendations possible"

// Operation names used for metrics and logs.
const (
	opSimilarUsers    = "similar_users"
	opRecommendations = "recommendations"
)

// Recommendations is the result of GenerateRecommendations. When Possible is
// false no other user contributed an unseen item and Items is empty.
type Recommendations struct {
	Items    []string
	Possible bool
}

// Message returns a printable form of the outcome.
func (r Recommendations) Message() string {
	if !r.Possible {
		return NoRecommendationsMessage
	}
	return fmt.Sprintf("%d recommendations", len(r.Items))
}

// Engine runs similarity-based ranking over a rating table.
// The table is never modified.
type Engine struct {
	workers int
	log     logger.Logger
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		workers: 1,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindSimilarUsers returns up to topK other users ordered by descending
// similarity to user. Equal scores are ordered by user id.
func (e *Engine) FindSimilarUsers(
	ctx context.Context,
	table model.RatingTable,
	user string,
	topK int,
	kernel string,
) ([]model.Neighbor, error) {
	start := time.Now()
	k, err := e.resolve(table, user, kernel)
	if err != nil {
		metrics.RecordOperationError(opSimilarUsers, errorReason(err))
		return nil, err
	}

	neighbors, err := e.scoreCandidates(ctx, table, user, k)
	if err != nil {
		metrics.RecordOperationError(opSimilarUsers, errorReason(err))
		return nil, err
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score > neighbors[j].Score
		}
		return neighbors[i].UserID < neighbors[j].UserID
	})

	if topK <= 0 {
		neighbors = neighbors[:0]
	} else if topK < len(neighbors) {
		neighbors = neighbors[:topK]
	}

	metrics.RecordOperationLatency(opSimilarUsers, k.Name(), msSince(start))
	e.log.Debug(ctx, "similar users ranked",
		logger.String("user", user),
		logger.String("kernel", k.Name()),
		logger.Int("top_k", topK),
		logger.Int("returned", len(neighbors)),
	)
	return neighbors, nil
}

// GenerateRecommendations ranks the items user has not rated by the
// similarity-weighted average rating of every positively similar user.
// A stored rating of exactly 0 counts as not rated.
func (e *Engine) GenerateRecommendations(
	ctx context.Context,
	table model.RatingTable,
	user string,
	kernel string,
) (Recommendations, error) {
	start := time.Now()
	k, err := e.resolve(table, user, kernel)
	if err != nil {
		metrics.RecordOperationError(opRecommendations, errorReason(err))
		return Recommendations{}, err
	}

	neighbors, err := e.scoreCandidates(ctx, table, user, k)
	if err != nil {
		metrics.RecordOperationError(opRecommendations, errorReason(err))
		return Recommendations{}, err
	}

	weighted := make(map[string]float64)
	weights := make(map[string]float64)
	for _, n := range neighbors {
		if n.Score <= 0 {
			continue
		}
		for item, rating := range table[n.UserID] {
			if !unseen(table, user, item) {
				continue
			}
			weighted[item] += rating * n.Score
			weights[item] += n.Score
		}
	}

	if len(weights) == 0 {
		metrics.RecordRecommendationsExhausted(k.Name())
		metrics.RecordOperationLatency(opRecommendations, k.Name(), msSince(start))
		e.log.Debug(ctx, "no recommendations possible",
			logger.String("user", user),
			logger.String("kernel", k.Name()),
		)
		return Recommendations{Items: []string{}}, nil
	}

	ranked := make([]model.ItemScore, 0, len(weights))
	for item, w := range weights {
		ranked = append(ranked, model.ItemScore{ItemID: item, Score: weighted[item] / w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ItemID < ranked[j].ItemID
	})

	items := make([]string, len(ranked))
	for i, r := range ranked {
		items[i] = r.ItemID
	}

	metrics.RecordRecommendedItems(len(items))
	metrics.RecordOperationLatency(opRecommendations, k.Name(), msSince(start))
	e.log.Debug(ctx, "recommendations ranked",
		logger.String("user", user),
		logger.String("kernel", k.Name()),
		logger.Int("items", len(items)),
	)
	return Recommendations{Items: items, Possible: true}, nil
}

// unseen reports whether user has no rating for item, or a rating of exactly 0.
func unseen(table model.RatingTable, user, item string) bool {
	r, ok := table.Rating(user, item)
	return !ok || r == 0
}

func (e *Engine) resolve(table model.RatingTable, user, kernel string) (similarity.Kernel, error) {
	if !table.HasUser(user) {
		return nil, &similarity.UnknownUserError{User: user}
	}
	return similarity.Lookup(kernel)
}

// scoreCandidates computes the similarity of user against every other user.
// Candidates are split into contiguous chunks, one per worker; each worker
// writes only its own slots so the output is independent of the worker count.
func (e *Engine) scoreCandidates(
	ctx context.Context,
	table model.RatingTable,
	user string,
	k similarity.Kernel,
) ([]model.Neighbor, error) {
	candidates := make([]string, 0, len(table))
	for _, other := range table.Users() {
		if other != user {
			candidates = append(candidates, other)
		}
	}
	out := make([]model.Neighbor, len(candidates))
	if len(candidates) == 0 {
		return out, nil
	}

	workers := e.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	chunkSize := (len(candidates) + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := min(lo+chunkSize, len(candidates))
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				score, err := k.Similarity(table, user, candidates[i])
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				out[i] = model.Neighbor{UserID: candidates[i], Score: score}
			}
		}(lo, hi)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("score candidates: %w", firstErr)
	}
	metrics.RecordSimilarityComputations(k.Name(), len(candidates))
	return out, nil
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, similarity.ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, similarity.ErrUnsupportedKernel):
		return "unsupported_kernel"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
