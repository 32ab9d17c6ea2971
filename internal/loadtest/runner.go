package loadtest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/usercf/pkg/logger"
)

const (
	settlePollInterval = 100 * time.Millisecond
	progressEvery      = 1000
)

// Run executes the full load test: health check, submission, settle,
// verification. A non-nil error is returned when the service is unreachable
// or any verification fails; stats are returned either way.
func Run(ctx context.Context, cfg Config, log logger.Logger) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	defer func() {
		stats.EndTime = time.Now()
		stats.Duration = stats.EndTime.Sub(stats.StartTime)
	}()

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy", logger.String("url", cfg.BaseURL))

	before, err := c.stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("read stats: %w", err)
	}

	ratings := generateRatings(cfg)
	stats.Generated = len(ratings)
	log.Info(ctx, "generated ratings",
		logger.Int("users", cfg.Users),
		logger.Int("items", cfg.Items),
		logger.Int("ratings", len(ratings)),
	)

	if cfg.OutputFile != "" {
		if err := saveRatings(ratings, cfg.OutputFile); err != nil {
			log.Warn(ctx, "failed to save ratings", logger.String("file", cfg.OutputFile), logger.Error(err))
		}
	}

	rated := submit(ctx, c, withDuplicates(ratings, cfg.DuplicateRate, cfg.Seed), cfg.Workers, stats, log)
	log.Info(ctx, "submission complete",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("backpressure", stats.Backpressure),
		logger.Int("failed", stats.Failed),
	)

	target := before.Applied + int64(stats.Accepted)
	if err := waitApplied(ctx, c, target, cfg.SettleTimeout); err != nil {
		return stats, err
	}
	log.Info(ctx, "service applied all accepted ratings", logger.Any("applied", target))

	verify(ctx, c, cfg, rated, stats)
	for _, v := range stats.Violations {
		log.Warn(ctx, "verification failed", logger.String("detail", v))
	}
	if len(stats.Violations) > 0 {
		return stats, fmt.Errorf("%d verification failures", len(stats.Violations))
	}
	return stats, nil
}

// submit posts ratings from a pool of workers. It returns the items the
// service accepted per user, which is what recommendations must exclude.
func submit(ctx context.Context, c *client, ratings []Rating, workers int, stats *Stats, log logger.Logger) map[string]map[string]struct{} {
	var accepted, duplicate, backpressure, failed, sent atomic.Int64

	var mu sync.Mutex
	rated := make(map[string]map[string]struct{})

	jobs := make(chan Rating, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				switch c.submit(ctx, r) {
				case outcomeAccepted:
					accepted.Add(1)
					mu.Lock()
					if rated[r.UserID] == nil {
						rated[r.UserID] = make(map[string]struct{})
					}
					rated[r.UserID][r.ItemID] = struct{}{}
					mu.Unlock()
				case outcomeDuplicate:
					duplicate.Add(1)
				case outcomeBackpressure:
					backpressure.Add(1)
				default:
					failed.Add(1)
				}
				if n := sent.Add(1); n%progressEvery == 0 {
					log.Debug(ctx, "submission progress", logger.Any("sent", n))
				}
			}
		}()
	}

feed:
	for _, r := range ratings {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- r:
		}
	}
	close(jobs)
	wg.Wait()

	stats.Submitted = int(sent.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Backpressure = int(backpressure.Load())
	stats.Failed = int(failed.Load())
	return rated
}

// waitApplied polls /stats until the service has applied target ratings.
func waitApplied(ctx context.Context, c *client, target int64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		s, err := c.stats(ctx)
		if err == nil && s.Applied >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("service applied %d of %d ratings before timeout: %w", s.Applied, target, ctx.Err())
		case <-ticker.C:
		}
	}
}

func saveRatings(ratings []Rating, path string) error {
	data, err := json.MarshalIndent(ratings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ratings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
