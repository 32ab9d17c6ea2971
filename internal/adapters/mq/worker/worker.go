// Package worker drains the rating queue and applies each rating to the store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/usercf/internal/adapters/mq/queue"
	"github.com/okian/usercf/pkg/logger"
	"github.com/okian/usercf/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
	partitionBuffer         = 64
)

// Event is what workers read off the queue.
type Event = queue.Event

// Applier writes a rating to durable or in-memory state.
type Applier interface {
	Put(ctx context.Context, ev Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker applies queued ratings until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue is drained after Close.
	Run(ctx context.Context)

	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string
	onApply func()

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		applier:  applier,
		name:     "worker",
		onApply:  func() {},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.apply(ctx, event); err != nil {
				w.logger.Error(ctx, "error applying rating", logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) apply(ctx context.Context, event Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.applier.Put(ctx, event); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_error")
		metrics.RecordErrorByType("apply_error", "high")
		w.logger.Error(ctx, "rating write failed",
			logger.String("event_id", event.EventID),
			logger.String("user_id", event.UserID),
			logger.Error(err),
		)
		return fmt.Errorf("apply rating %s: %w", event.EventID, err)
	}

	metrics.RecordRatingApplied()
	w.onApply()
	return nil
}

// partition is the ordered share of the queue owned by one worker.
type partition chan Event

func (p partition) Dequeue(context.Context) <-chan Event { return p }

// Pool manages multiple workers. Events are routed to workers by user and
// item, so ratings of the same item by the same user are applied in queue
// order and a later rating always replaces an earlier one.
type Pool struct {
	workers    []*InMemoryWorker
	partitions []partition
	queue      Queue

	shutdown     chan struct{}
	shutdownOnce sync.Once

	started     atomic.Bool
	applied     atomic.Int64
	lastApplied atomic.Int64
	lastTick    time.Time

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below 1 picks a
// size from the number of CPUs. A nil log discards output.
func NewPool(workerCount int, q Queue, applier Applier, log logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	if log == nil {
		log = logger.Nop()
	}

	p := &Pool{
		workers:    make([]*InMemoryWorker, workerCount),
		partitions: make([]partition, workerCount),
		queue:      q,
		shutdown:   make(chan struct{}),
		lastTick:   time.Now(),
		logger:     log.Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.partitions[i] = make(partition, partitionBuffer)
		p.workers[i] = NewInMemoryWorker(p.partitions[i], applier,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(log),
			withOnApply(func() { p.applied.Add(1) }),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Applied returns the number of ratings applied since the pool was created.
func (p *Pool) Applied() int64 { return p.applied.Load() }

// Start starts all workers in the pool. Workers stop when ctx is done or
// after Shutdown has drained the queue; callers that need queued ratings
// persisted on exit pass a context that outlives the request or signal.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.dispatch(ctx)
	go p.startMetricsUpdater(ctx)
}

// dispatch moves events from the shared queue to their partitions until the
// queue is closed and drained, then closes every partition.
func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, part := range p.partitions {
			close(part)
		}
	}()
	for ev := range p.queue.Dequeue(ctx) {
		select {
		case p.partitions[p.partitionFor(ev)] <- ev:
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		}
	}
}

// partitionFor returns the index of the worker that owns ev's user and item.
func (p *Pool) partitionFor(ev Event) int {
	h := xxhash.New()
	_, _ = h.WriteString(ev.UserID)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(ev.ItemID)
	return int(h.Sum64() % uint64(len(p.partitions)))
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case now := <-ticker.C:
			p.updateMetrics(now)
		}
	}
}

func (p *Pool) updateMetrics(now time.Time) {
	elapsed := now.Sub(p.lastTick).Seconds()
	total := p.applied.Load()
	if elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(total-p.lastApplied.Load()) / elapsed)
	}
	p.lastApplied.Store(total)
	p.lastTick = now
}

// Shutdown closes the queue when it supports it, lets workers drain what is
// left and waits for them up to a fixed timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		if !p.started.Load() {
			break
		}
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
		if timedOut {
			break
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.shutdownOnce.Do(func() { close(w.shutdown) })
	}
	metrics.UpdateWorkerCount(0)

	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
