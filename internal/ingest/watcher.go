package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/repair-orders/constants"
)

type WatchConfig struct {
	Root        string        // inbox directory, watched recursively
	InitialScan bool          // emit files already present
	Debounce    time.Duration // coalesce rapid write bursts
}

// StartWatcher emits paths of supported files created or written under
// cfg.Root. Hidden files and directories are ignored.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, nil, errors.New("inbox root is required")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("inbox.watcher.create_failed", "error", err)
		return nil, nil, err
	}

	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != cfg.Root && hiddenUnder(cfg.Root, path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && allowed(path) {
			select {
			case evCh <- path:
			default:
				logger.Warn("inbox.initial_scan.dropped", "path", path)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("inbox.watcher.add_failed", "root", cfg.Root, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("inbox.watcher.close_failed", "error", err)
			}
		}()

		var timer *time.Timer
		pending := map[string]struct{}{}
		flush := make(chan struct{}, 1)

		send := func() {
			for p := range pending {
				select {
				case evCh <- p:
				case <-ctx.Done():
					return
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case <-flush:
				send()
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if hiddenUnder(cfg.Root, e.Name) {
					continue
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					// new station directories are watched too; Add fails harmlessly on files
					_ = w.Add(e.Name)
				}
				if !allowed(e.Name) || e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					send()
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(cfg.Debounce, func() {
					select {
					case flush <- struct{}{}:
					default:
					}
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("inbox.watcher.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func hiddenUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return isHidden(path)
	}
	return isHidden(rel)
}

func allowed(path string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// isHidden reports whether any element of path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
