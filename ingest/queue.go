package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	loreforge "github.com/loreforge/loreforge"
)

const (
	defaultQueueWorkers = 2
	defaultQueueBuffer  = 32
	defaultJobTimeout   = 5 * time.Minute
)

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// QueueWorkers sets how many sources are ingested concurrently.
func QueueWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// QueueBuffer sets how many pending sources the queue holds before
// Enqueue starts reporting false.
func QueueBuffer(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.buffer = n
		}
	}
}

// QueueJobTimeout bounds how long a single source's ingestion may run.
func QueueJobTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.jobTimeout = d
		}
	}
}

// QueueLogger sets the queue's logger.
func QueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// Queue runs source ingestion on a fixed pool of background workers so
// uploads return before embedding finishes. A full queue sheds load:
// Enqueue reports false and the caller decides whether to ingest inline or
// leave the source for a reconcile pass.
type Queue struct {
	ingestor   loreforge.SourceIngestor
	jobs       chan loreforge.Source
	workers    int
	buffer     int
	jobTimeout time.Duration
	logger     *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once

	// mu excludes Enqueue's send from Close's close(jobs), so a late
	// Enqueue reports false instead of panicking on a closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates and starts a Queue.
func NewQueue(ing loreforge.SourceIngestor, opts ...QueueOption) *Queue {
	q := &Queue{
		ingestor:   ing,
		workers:    defaultQueueWorkers,
		buffer:     defaultQueueBuffer,
		jobTimeout: defaultJobTimeout,
		logger:     nopLogger,
	}
	for _, o := range opts {
		o(q)
	}
	q.jobs = make(chan loreforge.Source, q.buffer)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue submits a source for background ingestion. Reports false when
// the queue is full or closed.
func (q *Queue) Enqueue(src loreforge.Source) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.jobs <- src:
		return true
	default:
		q.logger.Warn("ingest queue full, rejecting", "source", src.ID)
		return false
	}
}

// Close stops accepting new sources, waits for queued ingestions to
// finish, and returns.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for src := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
		n, err := q.ingestor.IngestSource(ctx, src)
		cancel()
		if err != nil {
			q.logger.Warn("background ingest failed", "source", src.ID, "error", err)
			continue
		}
		q.logger.Debug("background ingest complete", "source", src.ID, "chunks", n)
	}
}

var _ loreforge.IngestQueue = (*Queue)(nil)
