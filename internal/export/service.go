package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/repository"
	"github.com/joseph-ayodele/repair-orders/internal/services/batch"
)

// BatchSource is satisfied by *batch.Service.
type BatchSource interface {
	ApprovedBatches(ctx context.Context, f batch.ExportFilter) ([]entity.OrderBatch, error)
}

// Service produces XLSX bytes for approved work.
type Service struct {
	batches   BatchSource
	operators repository.OperatorRepository
	access    *access.AllowList
	logger    *slog.Logger
}

func NewService(batches BatchSource, operators repository.OperatorRepository, acl *access.AllowList, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if acl == nil {
		acl = access.NewAllowList(nil, logger)
	}
	return &Service{batches: batches, operators: operators, access: acl, logger: logger}
}

// ExportApprovedXLSX returns every approved batch as a workbook.
func (s *Service) ExportApprovedXLSX(ctx context.Context) ([]byte, error) {
	if err := s.access.Check(ctx, "export"); err != nil {
		return nil, err
	}
	return s.render(ctx, "all", batch.ExportFilter{})
}

// OperatorReportXLSX returns approved batches submitted by tgID, optionally
// limited to one week.
func (s *Service) OperatorReportXLSX(ctx context.Context, tgID int64, week string) ([]byte, error) {
	if err := s.access.Check(ctx, "operator_report"); err != nil {
		return nil, err
	}
	op, err := s.operators.GetByTgID(ctx, tgID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFoundError(constants.MsgOperatorNotFound)
		}
		return nil, common.WrapError(err, "lookup operator")
	}
	return s.render(ctx, fmt.Sprintf("operator:%d", tgID), batch.ExportFilter{OperatorID: &op.ID, WeekLabel: week})
}

// Report is one rendered workbook ready for delivery.
type Report struct {
	Name string
	Data []byte
}

// WeeklyReports renders the all-operator report for week plus one report
// per registered operator that has approved work in it.
func (s *Service) WeeklyReports(ctx context.Context, week string) ([]Report, error) {
	all, err := s.render(ctx, "weekly", batch.ExportFilter{WeekLabel: week})
	if err != nil {
		return nil, err
	}
	out := []Report{{Name: fmt.Sprintf("report_%s_all.xlsx", week), Data: all}}

	ops, err := s.operators.List(ctx)
	if err != nil {
		return nil, common.WrapError(err, "list operators")
	}
	for _, op := range ops {
		id := op.ID
		batches, err := s.batches.ApprovedBatches(ctx, batch.ExportFilter{OperatorID: &id, WeekLabel: week})
		if err != nil {
			return nil, err
		}
		if len(batches) == 0 {
			continue
		}
		data, err := Workbook(batch.Flatten(batches), batches)
		if err != nil {
			return nil, err
		}
		out = append(out, Report{Name: fmt.Sprintf("report_%s_%d.xlsx", week, op.TgID), Data: data})
	}
	return out, nil
}

func (s *Service) render(ctx context.Context, scope string, f batch.ExportFilter) ([]byte, error) {
	start := time.Now()
	batches, err := s.batches.ApprovedBatches(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	rows := batch.Flatten(batches)
	data, err := Workbook(rows, batches)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"scope", scope,
		"week", f.WeekLabel,
		"batches", len(batches),
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}
