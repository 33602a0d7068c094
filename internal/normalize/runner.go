package normalize

import (
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"
)

// Output caps for the converter binaries. antiword prints the whole
// document; pdftoppm and unrar only print diagnostics.
const (
	maxStdout = 8 << 20
	maxStderr = 4 << 10
)

// Runner executes the converter binaries (pdftoppm, antiword, unrar).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	tool := filepath.Base(name)
	start := time.Now()

	stdout := &cappedBuffer{limit: maxStdout}
	stderr := &cappedBuffer{limit: maxStderr}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err != nil {
		r.logger.Error("normalize.exec.failed",
			"tool", tool,
			"args", len(args),
			"error", err,
			"stderr", string(stderr.buf),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return stdout.buf, stderr.buf, err
	}
	r.logger.Debug("normalize.exec.ok",
		"tool", tool,
		"stdout_bytes", len(stdout.buf),
		"stdout_truncated", stdout.dropped > 0,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stdout.buf, stderr.buf, nil
}

// cappedBuffer keeps the first limit bytes and counts the rest. Writes
// never fail, so the child is not killed by a closed pipe.
type cappedBuffer struct {
	buf     []byte
	limit   int
	dropped int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - len(b.buf)
	if room > len(p) {
		room = len(p)
	}
	if room > 0 {
		b.buf = append(b.buf, p[:room]...)
	}
	b.dropped += len(p) - max(room, 0)
	return len(p), nil
}
