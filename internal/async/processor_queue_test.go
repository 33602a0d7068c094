package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/repair-orders/internal/services/ingest"
)

type countingProcessor struct {
	mu      sync.Mutex
	sources []string
}

func (p *countingProcessor) IngestFile(_ context.Context, up ingest.Upload) (*ingest.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append(p.sources, up.SourceName)
	return &ingest.Result{Files: []ingest.FileResult{{SourceName: up.SourceName}}}, nil
}

func TestProcessorQueue_ProcessesAndDrains(t *testing.T) {
	proc := &countingProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(2), WithQueueSize(1))

	var (
		mu   sync.Mutex
		done []string
	)
	for _, name := range []string{"a.jpg", "b.pdf", "c.docx"} {
		err := q.Enqueue(context.Background(), Job{
			ID:     uuid.New(),
			Upload: ingest.Upload{SourceName: name},
			Done: func(res *ingest.Result, err error) {
				mu.Lock()
				defer mu.Unlock()
				done = append(done, res.Files[0].SourceName)
			},
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.ElementsMatch(t, []string{"a.jpg", "b.pdf", "c.docx"}, proc.sources)
	assert.ElementsMatch(t, []string{"a.jpg", "b.pdf", "c.docx"}, done)

	err := q.Enqueue(context.Background(), Job{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrQueueClosed)
	q.Shutdown(ctx)
}

type gatedProcessor struct {
	started chan string
	gate    chan struct{}
}

func (p *gatedProcessor) IngestFile(_ context.Context, up ingest.Upload) (*ingest.Result, error) {
	p.started <- up.SourceName
	<-p.gate
	return &ingest.Result{}, nil
}

func TestProcessorQueue_BlockedSenderDoesNotStallOthers(t *testing.T) {
	proc := &gatedProcessor{started: make(chan string, 4), gate: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	job := func(name string) Job { return Job{ID: uuid.New(), Upload: ingest.Upload{SourceName: name}} }

	require.NoError(t, q.Enqueue(context.Background(), job("first.pdf")))
	assert.Equal(t, "first.pdf", <-proc.started)
	require.NoError(t, q.Enqueue(context.Background(), job("buffered.pdf")))

	blocked := make(chan error, 1)
	go func() { blocked <- q.Enqueue(context.Background(), job("blocked.pdf")) }()
	time.Sleep(50 * time.Millisecond)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	errc := make(chan error, 1)
	go func() { errc <- q.Enqueue(cancelled, job("impatient.pdf")) }()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("enqueue waited behind a blocked sender")
	}

	shut := make(chan struct{})
	go func() {
		defer close(shut)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)
	}()
	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not release the blocked sender")
	}

	close(proc.gate)
	<-shut
	assert.Equal(t, "buffered.pdf", <-proc.started)
}
