package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/repair-orders/internal/async"
)

type recordingQueue struct{ jobs []async.Job }

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}
func (q *recordingQueue) Shutdown(context.Context) {}

func TestStationFor(t *testing.T) {
	root := filepath.Join("srv", "inbox")
	assert.Equal(t, "", StationFor(root, filepath.Join(root, "a.pdf")))
	assert.Equal(t, "СТО Север", StationFor(root, filepath.Join(root, "СТО Север", "a.pdf")))
	assert.Equal(t, "north", StationFor(root, filepath.Join(root, "north", "2024", "a.pdf")))
	assert.Equal(t, "", StationFor(root, filepath.Join("elsewhere", "a.pdf")))
}

func TestIsHiddenAndAllowed(t *testing.T) {
	assert.True(t, isHidden("inbox/.done/a.pdf"))
	assert.False(t, isHidden("inbox/north/a.pdf"))
	assert.True(t, allowed("x/A.PDF"))
	assert.False(t, allowed("x/notes.txt"))
}

func TestInbox_SubmitAndArchive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "north"), 0o755))
	path := filepath.Join(root, "north", "order.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	q := &recordingQueue{}
	in := NewInbox(root, q, nil)
	require.NoError(t, in.Submit(context.Background(), path))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, "north", q.jobs[0].Upload.StationName)
	assert.Equal(t, "order.pdf", q.jobs[0].Upload.SourceName)

	q.jobs[0].Done(nil, nil)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	done, err := os.ReadDir(filepath.Join(root, DoneDir))
	require.NoError(t, err)
	assert.Len(t, done, 1)

	assert.Error(t, in.Submit(context.Background(), filepath.Join(root, "missing.pdf")))
}

func TestStartWatcher_InitialScan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, DoneDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, DoneDir, "old.jpg"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Root: root, InitialScan: true}, nil)
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "a.jpg"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit")
	}
	select {
	case p := <-events:
		t.Fatalf("unexpected event %s", p)
	case <-time.After(100 * time.Millisecond):
	}
}
