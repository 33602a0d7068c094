package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/repair-orders/internal/async"
	svc "github.com/joseph-ayodele/repair-orders/internal/services/ingest"
)

// DoneDir receives inbox files after processing.
const DoneDir = ".done"

// Inbox turns files dropped into a directory into queued uploads. A file
// at <root>/<station>/<name> is attributed to that station.
type Inbox struct {
	root   string
	queue  async.Queue
	logger *slog.Logger
}

func NewInbox(root string, q async.Queue, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{root: root, queue: q, logger: logger}
}

// StationFor returns the station directory a file sits in, or "" for the root.
func StationFor(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return strings.Split(filepath.ToSlash(rel), "/")[0]
}

// Run consumes watcher events until ctx is done.
func (in *Inbox) Run(ctx context.Context, debounce time.Duration) error {
	events, errs, err := StartWatcher(ctx, WatchConfig{Root: in.root, InitialScan: true, Debounce: debounce}, in.logger)
	if err != nil {
		return err
	}
	in.logger.Info("inbox.started", "root", in.root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if err := in.Submit(ctx, p); err != nil {
				in.logger.Error("inbox.submit_failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				in.logger.Warn("inbox.watch_error", "error", err)
			}
		}
	}
}

// Submit queues one inbox file; after processing it is moved under DoneDir.
func (in *Inbox) Submit(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return in.queue.Enqueue(ctx, async.Job{
		ID: uuid.New(),
		Upload: svc.Upload{
			Path:        path,
			SourceName:  filepath.Base(path),
			StationName: StationFor(in.root, path),
		},
		SubmittedAt: time.Now(),
		Done: func(_ *svc.Result, _ error) {
			if err := in.archive(path); err != nil {
				in.logger.Warn("inbox.archive_failed", "path", path, "error", err)
			}
		},
	})
}

func (in *Inbox) archive(path string) error {
	dir := filepath.Join(in.root, DoneDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102T150405"), filepath.Base(path)))
	return os.Rename(path, dst)
}
