package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ProcessFunc handles one queued document.
type ProcessFunc func(ctx context.Context, documentID string) error

// IngestQueue runs ingestion jobs on a fixed pool of workers fed by a bounded
// channel. A document id is "active" from Reserve until its job finishes, and
// at most one job per document is active at any time.
type IngestQueue struct {
	jobs    chan string
	process ProcessFunc
	workers int

	mu     sync.Mutex
	active map[string]struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewIngestQueue sizes the pool. Start must be called before jobs run.
func NewIngestQueue(process ProcessFunc, workers, size int) *IngestQueue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	return &IngestQueue{
		jobs:    make(chan string, size),
		process: process,
		workers: workers,
		active:  make(map[string]struct{}),
	}
}

// Start launches the workers. Jobs run on a context that outlives the
// request that queued them.
func (q *IngestQueue) Start() {
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.group = &errgroup.Group{}
	for i := 0; i < q.workers; i++ {
		q.group.Go(func() error {
			for id := range q.jobs {
				if err := q.process(q.ctx, id); err != nil {
					log.Debug().Err(err).Str("document_id", id).Msg("ingestion job finished with error")
				}
				q.release(id)
			}
			return nil
		})
	}
}

// Reserve claims documentID. It fails with ErrIngestionRunning when a job for
// the document is queued or running.
func (q *IngestQueue) Reserve(documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if _, busy := q.active[documentID]; busy {
		return ErrIngestionRunning
	}
	q.active[documentID] = struct{}{}
	return nil
}

// Dispatch queues a reserved document without blocking. On ErrQueueFull or
// ErrQueueClosed the reservation is released.
func (q *IngestQueue) Dispatch(documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		delete(q.active, documentID)
		return ErrQueueClosed
	}
	select {
	case q.jobs <- documentID:
		return nil
	default:
		delete(q.active, documentID)
		return ErrQueueFull
	}
}

// Enqueue is Reserve followed by Dispatch.
func (q *IngestQueue) Enqueue(documentID string) error {
	if err := q.Reserve(documentID); err != nil {
		return err
	}
	return q.Dispatch(documentID)
}

// Release drops a reservation that will not be dispatched.
func (q *IngestQueue) Release(documentID string) { q.release(documentID) }

func (q *IngestQueue) release(documentID string) {
	q.mu.Lock()
	delete(q.active, documentID)
	q.mu.Unlock()
}

// Close stops accepting jobs and waits for queued ones to drain. If ctx ends
// first, running jobs are cancelled and ctx.Err() is returned.
func (q *IngestQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	if q.group == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
