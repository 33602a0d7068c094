package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/repair-orders/internal/common"
)

type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Job
	done    chan struct{}
	wg      sync.WaitGroup
	senders sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 64),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("ingest.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Info("ingest.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(common.WithRequestID(context.Background(), job.RequestID), q.timeout)
	defer cancel()

	start := time.Now()
	res, err := q.proc.IngestFile(ctx, job.Upload)
	if err != nil {
		q.logger.Error("ingest.job.failed", "worker_id", workerID, "job_id", job.ID, "source", job.Upload.SourceName, "error", err)
	} else {
		q.logger.Info("ingest.job.done", "worker_id", workerID, "job_id", job.ID, "documents", len(res.Files),
			"waited_ms", start.Sub(job.SubmittedAt).Milliseconds(),
			"elapsed_ms", time.Since(start).Milliseconds())
	}
	if job.Done != nil {
		job.Done(res, err)
	}
}

// Enqueue blocks when the buffer is full, until ctx ends or the queue
// shuts down. The lock is only held to register the sender.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("ingest.queue.closed", "job_id", job.ID)
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("ingest.queue.accepted", "job_id", job.ID, "source", job.Upload.SourceName)
		return nil
	default:
	}
	q.logger.Warn("ingest.queue.full", "job_id", job.ID)
	select {
	case q.ch <- job:
		q.logger.Info("ingest.queue.accepted", "job_id", job.ID, "source", job.Upload.SourceName)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		q.logger.Warn("ingest.queue.closed", "job_id", job.ID)
		return ErrQueueClosed
	}
}

// Shutdown stops accepting jobs, releases blocked senders and waits for
// the workers to drain what was accepted.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.senders.Wait()
	close(q.ch)

	drained := make(chan struct{})
	go func() { defer close(drained); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("ingest.queue.shutdown_interrupted")
	case <-drained:
		q.logger.Info("ingest.queue.drained")
	}
}
