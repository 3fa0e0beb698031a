package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
	drainTimeout        = 10 * time.Second
)

// Worker polls the outbox and hands unprocessed notifications to the sink.
type Worker struct {
	store        OutboxStore
	sink         Sink
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerOption configures the Worker.
type WorkerOption func(*Worker)

// WithBatchSize sets the maximum number of notifications fetched per poll.
func WithBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// NewWorker creates an outbox worker delivering through the given sink.
func NewWorker(store OutboxStore, sink Sink, logger *slog.Logger, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:        store,
		sink:         sink,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.poll(w.ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to fetch outbox notifications", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	delivered := make([]string, 0, len(entries))
	for _, n := range entries {
		if err := w.sink.Deliver(ctx, n); err != nil {
			// Left unprocessed; the next poll retries it.
			w.logger.Error("failed to deliver notification",
				"id", n.ID.String(),
				"event", n.Event,
				"error", err,
			)
			continue
		}
		delivered = append(delivered, n.ID.String())
	}

	if len(delivered) == 0 {
		return
	}
	if err := w.store.MarkProcessed(ctx, delivered); err != nil {
		// Delivered but not marked: redelivered next poll, consumers dedupe on ID.
		w.logger.Error("failed to mark notifications processed", "error", err)
	}
}

// drain makes a final delivery pass during shutdown so decisions made just
// before the stop are still announced.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	w.logger.Info("draining notification outbox")
	for {
		before, err := w.store.FetchUnprocessed(ctx, 1)
		if err != nil || len(before) == 0 {
			return
		}
		w.poll(ctx)
		after, err := w.store.FetchUnprocessed(ctx, 1)
		if err != nil || len(after) == 0 {
			return
		}
		// No progress means the sink is down; give up rather than spin.
		if after[0].ID == before[0].ID {
			return
		}
	}
}

// Stop cancels the polling loop and waits for the drain pass to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
