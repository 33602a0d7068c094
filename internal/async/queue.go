package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/repair-orders/internal/services/ingest"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one upload waiting for the pipeline. Done, when set, runs after
// processing with the outcome; it owns cleanup of the uploaded file.
type Job struct {
	ID          uuid.UUID
	Upload      ingest.Upload
	SubmittedAt time.Time
	RequestID   string
	Done        func(res *ingest.Result, err error)
}

// Processor is satisfied by *ingest.Service.
type Processor interface {
	IngestFile(ctx context.Context, up ingest.Upload) (*ingest.Result, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
