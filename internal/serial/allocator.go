package serial

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"attesta/internal/platform/metrics"
	"attesta/internal/sentinel"
	dErrors "attesta/pkg/domain-errors"
)

// CounterStore increments the singleton sequence counter. The increment must
// hold an exclusive row lock for the duration of the enclosing transaction;
// no two callers ever observe the same value.
//
// Error Contract:
// - Increment returns sentinel.ErrLockTimeout when the row lock could not be
//   acquired in time (the transaction has rolled back, no value is consumed)
// - Other failures are returned as wrapped errors
type CounterStore interface {
	Increment(ctx context.Context) (int64, error)
}

// CounterTx provides a transactional boundary around counter increments when
// the allocator runs stand-alone (no surrounding issuance transaction).
type CounterTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, counters CounterStore) error) error
}

// Allocation is the result of a successful serial allocation.
type Allocation struct {
	Serial         string
	SequenceNumber int64
}

const defaultMaxRetries = 3

// Allocator issues unique, checksum-protected serials on top of the shared
// sequence counter. Lock timeouts are the only error class retried
// automatically; every retry runs a fresh transaction.
type Allocator struct {
	tx         CounterTx
	clock      func() time.Time
	maxRetries int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithClock overrides the time source, used to pin the serial year in tests.
func WithClock(clock func() time.Time) Option {
	return func(a *Allocator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithMaxRetries bounds automatic retries after lock timeouts.
func WithMaxRetries(n int) Option {
	return func(a *Allocator) {
		if n >= 0 {
			a.maxRetries = n
		}
	}
}

// WithMetrics sets the metrics instance for the allocator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Allocator) {
		a.metrics = m
	}
}

func NewAllocator(tx CounterTx, logger *slog.Logger, opts ...Option) *Allocator {
	a := &Allocator{
		tx:         tx,
		clock:      time.Now,
		maxRetries: defaultMaxRetries,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate issues the next serial for the given level in its own transaction.
// Concurrent callers are serialized by the counter row lock; a timeout waiting
// for it surfaces as CodeLockTimeout after retries are exhausted.
func (a *Allocator) Allocate(ctx context.Context, level Level) (Allocation, error) {
	if !level.IsValid() {
		return Allocation{}, dErrors.New(dErrors.CodeValidation, "unknown credential level: "+string(level))
	}

	var alloc Allocation
	var err error
	for attempt := 0; ; attempt++ {
		err = a.tx.RunInTx(ctx, func(ctx context.Context, counters CounterStore) error {
			var txErr error
			alloc, txErr = a.AllocateIn(ctx, counters, level)
			return txErr
		})
		if err == nil {
			return alloc, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeLockTimeout) || attempt >= a.maxRetries {
			return Allocation{}, err
		}
		if a.metrics != nil {
			a.metrics.AllocatorRetries.Inc()
		}
		a.logger.WarnContext(ctx, "sequence allocation retrying after lock timeout",
			"attempt", attempt+1,
			"level", string(level),
		)
	}
}

// AllocateIn issues the next serial inside a caller-owned transaction. It
// makes exactly one attempt: if the enclosing transaction aborts, the counter
// increment rolls back with it and no value is consumed. Callers owning the
// transaction decide whether to retry the whole unit.
func (a *Allocator) AllocateIn(ctx context.Context, counters CounterStore, level Level) (Allocation, error) {
	if !level.IsValid() {
		return Allocation{}, dErrors.New(dErrors.CodeValidation, "unknown credential level: "+string(level))
	}

	lockStart := time.Now()
	seq, err := counters.Increment(ctx)
	if a.metrics != nil {
		a.metrics.AllocatorLockWait.Observe(time.Since(lockStart).Seconds())
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrLockTimeout) {
			return Allocation{}, dErrors.Wrap(err, dErrors.CodeLockTimeout, "sequence counter busy")
		}
		return Allocation{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to increment sequence counter")
	}

	encoded, err := Encode(level, a.clock().Year(), seq)
	if err != nil {
		// The counter outran the serial format. Nothing to retry; surface as
		// an integrity failure so the transaction aborts.
		return Allocation{}, dErrors.Wrap(err, dErrors.CodeIntegrity, "sequence exceeds serial capacity")
	}

	if a.metrics != nil {
		a.metrics.SerialsAllocated.WithLabelValues(string(level)).Inc()
	}
	return Allocation{Serial: encoded, SequenceNumber: seq}, nil
}
