package mastery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSaveTimeout = 10 * time.Second

type SaveFunc func(ctx context.Context) error

// Saver runs persistence writes in the background, one key at a time.
// Enqueuing while a write for the same key is running replaces whatever was
// queued behind it, so the last enqueued write for a key wins. Failures are
// logged and never reach the caller.
type Saver struct {
	mu      sync.Mutex
	queues  map[string]*saveQueue
	timeout time.Duration
	log     logrus.FieldLogger
}

type saveQueue struct {
	next   SaveFunc
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSaver(timeout time.Duration, log logrus.FieldLogger) *Saver {
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}
	return &Saver{
		queues:  make(map[string]*saveQueue),
		timeout: timeout,
		log:     orDiscard(log),
	}
}

func (s *Saver) Enqueue(key string, fn SaveFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[key]; ok {
		q.next = fn
		return
	}
	q := &saveQueue{next: fn, done: make(chan struct{})}
	s.queues[key] = q
	go s.run(key, q)
}

func (s *Saver) run(key string, q *saveQueue) {
	for {
		s.mu.Lock()
		fn := q.next
		q.next = nil
		if fn == nil {
			delete(s.queues, key)
			close(q.done)
			s.mu.Unlock()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		q.cancel = cancel
		s.mu.Unlock()

		err := fn(ctx)
		cancel()

		s.mu.Lock()
		q.cancel = nil
		s.mu.Unlock()

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			s.log.WithField("key", key).Debug("save cancelled")
		default:
			s.log.WithField("key", key).WithError(err).Warn("save failed")
		}
	}
}

// Cancel drops the queued write for key and cancels the one in flight.
func (s *Saver) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[key]
	if !ok {
		return
	}
	q.next = nil
	if q.cancel != nil {
		q.cancel()
	}
}

// Wait blocks until no write for key is queued or running.
func (s *Saver) Wait(ctx context.Context, key string) error {
	s.mu.Lock()
	q, ok := s.queues[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits for every pending write.
func (s *Saver) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		var done chan struct{}
		for _, q := range s.queues {
			done = q.done
			break
		}
		s.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
