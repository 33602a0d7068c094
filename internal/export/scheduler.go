package export

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/joseph-ayodele/repair-orders/internal/services/batch"
)

// Deliverer hands a rendered report to its audience.
type Deliverer interface {
	Deliver(ctx context.Context, r Report) error
}

// DirDeliverer writes reports into a directory.
type DirDeliverer struct {
	Dir string
}

func (d DirDeliverer) Deliver(_ context.Context, r Report) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return errors.Wrap(err, "create reports dir")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(d.Dir, r.Name), r.Data, 0o644), "write report")
}

// Scheduler fires the weekly reports at Weekday/Hour local time, covering
// the ISO week that just ended.
type Scheduler struct {
	svc       *Service
	deliverer Deliverer
	weekday   time.Weekday
	hour      int
	now       func() time.Time
	logger    *slog.Logger
}

func NewScheduler(svc *Service, d Deliverer, weekday time.Weekday, hour int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{svc: svc, deliverer: d, weekday: weekday, hour: hour, now: time.Now, logger: logger}
}

// NextRun returns the first weekday/hour strictly after now.
func NextRun(now time.Time, weekday time.Weekday, hour int) time.Time {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+days, hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// PreviousWeek labels the ISO week before the one containing t.
func PreviousWeek(t time.Time) string {
	return batch.WeekLabel(t.AddDate(0, 0, -7))
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := NextRun(s.now(), s.weekday, s.hour)
		s.logger.Info("export.schedule.next", "at", next)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RunOnce(ctx, PreviousWeek(s.now())); err != nil {
				s.logger.Error("export.schedule.failed", "error", err)
			}
		}
	}
}

// RunOnce renders and delivers all reports for week. A failed delivery
// does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context, week string) error {
	start := time.Now()
	reports, err := s.svc.WeeklyReports(ctx, week)
	if err != nil {
		return err
	}
	var failed int
	for _, r := range reports {
		if err := s.deliverer.Deliver(ctx, r); err != nil {
			failed++
			s.logger.Warn("export.deliver.failed", "report", r.Name, "error", err)
		}
	}
	s.logger.Info("export.schedule.done", "week", week, "reports", len(reports), "failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
