// Package worker drains session_recorded events and fans them out.
//
// Each event invalidates the leaderboard cache and is broadcast to every
// live connection, so the recording path never touches the transport.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/typetrack/typetrack/internal/adapters/mq/queue"
	"github.com/typetrack/typetrack/pkg/logger"
	"github.com/typetrack/typetrack/pkg/metrics"
)

// Shutdown timeout constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Broadcaster fans a leaderboard update out to all live connections.
// Broadcasts are fire-and-forget; the hub owns delivery semantics.
type Broadcaster interface {
	BroadcastLeaderboardUpdate(ctx context.Context, e Event)
}

// Invalidator marks cached leaderboard views stale.
type Invalidator interface {
	Invalidate()
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events from the queue until stopped.
type Worker struct {
	queue       Queue
	broadcaster Broadcaster
	invalidator Invalidator
	name        string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a worker with configuration options.
func New(q Queue, broadcaster Broadcaster, invalidator Invalidator, opts ...Option) *Worker {
	w := &Worker{
		queue:       q,
		broadcaster: broadcaster,
		invalidator: invalidator,
		name:        "worker",
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
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
			w.process(ctx, event)
		}
	}
}

// Shutdown gracefully stops the worker. Safe to call more than once.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process handles a single session_recorded event: invalidate first so the
// next leaderboard read already reflects the fold, then broadcast.
func (w *Worker) process(ctx context.Context, event Event) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	w.invalidator.Invalidate()
	w.broadcaster.BroadcastLeaderboardUpdate(ctx, event)

	w.logger.Debug(ctx, "leaderboard update fanned out",
		logger.String("eventID", event.EventID),
		logger.String("username", event.Username),
		logger.Float64("wpm", event.WPM),
	)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*Worker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a pool of count workers over q.
func NewPool(count int, q Queue, broadcaster Broadcaster, invalidator Invalidator) *Pool {
	if count < 1 {
		count = 1
	}

	pool := &Pool{
		workers: make([]*Worker, count),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < count; i++ {
		pool.workers[i] = New(q, broadcaster, invalidator,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(count)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals every worker and waits for each, bounded per worker.
// Safe to call more than once and alongside Worker.Shutdown.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
		_ = w.Shutdown(ctx)
		cancel()
	}
}

// Shutdown closes the queue and stops all workers, bounded by
// poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
