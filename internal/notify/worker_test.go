package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingSink records deliveries and can be told to fail a number of them.
type capturingSink struct {
	mu        sync.Mutex
	delivered []*Notification
	failures  int
}

func (s *capturingSink) Deliver(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *capturingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enqueue(t *testing.T, outbox *InMemoryOutbox, event string) *Notification {
	t.Helper()
	n, err := New(event, "holder-1", map[string]string{"k": "v"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, outbox.Enqueue(context.Background(), n))
	return n
}

func TestWorkerDeliversAndMarksProcessed(t *testing.T) {
	outbox := NewInMemoryOutbox()
	sink := &capturingSink{}

	first := enqueue(t, outbox, EventRequestCreated)
	second := enqueue(t, outbox, EventRequestApproved)

	w := NewWorker(outbox, sink, discardLogger(), WithPollInterval(5*time.Millisecond))
	w.Start()
	defer func() {
		require.NoError(t, w.Stop(context.Background()))
	}()

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	assert.Equal(t, first.ID, sink.delivered[0].ID)
	assert.Equal(t, second.ID, sink.delivered[1].ID)
	sink.mu.Unlock()

	require.Eventually(t, func() bool {
		pending, err := outbox.FetchUnprocessed(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerRetriesFailedDelivery(t *testing.T) {
	outbox := NewInMemoryOutbox()
	sink := &capturingSink{failures: 2}

	n := enqueue(t, outbox, EventGrantRevoked)

	w := NewWorker(outbox, sink, discardLogger(), WithPollInterval(5*time.Millisecond))
	w.Start()
	defer func() {
		require.NoError(t, w.Stop(context.Background()))
	}()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	assert.Equal(t, n.ID, sink.delivered[0].ID)
	sink.mu.Unlock()
}

func TestWorkerDrainsOnStop(t *testing.T) {
	outbox := NewInMemoryOutbox()
	sink := &capturingSink{}

	// Poll interval far beyond the test duration; only the drain pass can
	// deliver these.
	w := NewWorker(outbox, sink, discardLogger(), WithPollInterval(time.Hour))
	w.Start()

	enqueue(t, outbox, EventRequestRejected)
	enqueue(t, outbox, EventRequestApproved)

	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 2, sink.count())

	pending, err := outbox.FetchUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWorkerStopDoesNotSpinOnDeadSink(t *testing.T) {
	outbox := NewInMemoryOutbox()
	sink := &capturingSink{failures: 1 << 30}

	enqueue(t, outbox, EventRequestCreated)

	w := NewWorker(outbox, sink, discardLogger(), WithPollInterval(time.Hour))
	w.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	pending, err := outbox.FetchUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
