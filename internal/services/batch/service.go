package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/events"
	"github.com/joseph-ayodele/repair-orders/internal/metrics"
	"github.com/joseph-ayodele/repair-orders/internal/pricelist"
	"github.com/joseph-ayodele/repair-orders/internal/repository"
)

// Service owns the batch lifecycle: creation from a parsed document and
// the human approve/reject transitions.
type Service struct {
	batches   repository.BatchRepository
	stations  repository.StationRepository
	access    *access.AllowList
	publisher events.Publisher
	metrics   *metrics.Registry
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithMetrics(m *metrics.Registry) Option  { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option   { return func(s *Service) { s.now = now } }

func NewService(batches repository.BatchRepository, stations repository.StationRepository, acl *access.AllowList, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if acl == nil {
		acl = access.NewAllowList(nil, logger)
	}
	s := &Service{
		batches:   batches,
		stations:  stations,
		access:    acl,
		publisher: events.Noop{},
		logger:    logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// IngestRequest carries one parsed document into the store.
type IngestRequest struct {
	Order      entity.ParsedOrder
	Validation pricelist.Result
	StationID  *int64
	OperatorID *int64
	SourceName string
}

// WeekLabel formats the ISO week of t as YYYY-Www.
func WeekLabel(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// InitialStatus is NEEDS_REVIEW when any item carries a validation error,
// any overage warning exists, or extraction itself asked for review.
func InitialStatus(order entity.ParsedOrder, items []entity.OrderItem, warnings []string) constants.BatchStatus {
	if len(warnings) > 0 || order.NeedsOperatorReview {
		return constants.BatchStatusNeedsReview
	}
	for _, it := range items {
		if it.ValidationError != nil {
			return constants.BatchStatusNeedsReview
		}
	}
	return constants.BatchStatusUnreviewed
}

// Ingest creates exactly one batch for the document. It never approves.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*entity.OrderBatch, error) {
	start := time.Now()
	now := s.now().UTC()
	o := req.Order

	items := make([]entity.OrderItem, 0, len(o.Items))
	for i, pi := range o.Items {
		it := entity.OrderItem{
			WorkName: pi.WorkName,
			Quantity: pi.Quantity,
			Price:    pi.Price,
			Total:    pi.Total,
			VIN:      optional(o.VIN),
			Mileage:  optional(o.Mileage),
		}
		if i < len(req.Validation.ItemErrors) {
			it.ValidationError = req.Validation.ItemErrors[i]
		}
		items = append(items, it)
	}

	b := &entity.OrderBatch{
		StationID:    req.StationID,
		OperatorID:   req.OperatorID,
		CreatedAt:    now,
		WeekLabel:    WeekLabel(now),
		Status:       InitialStatus(o, items, req.Validation.Warnings),
		Plate:        o.Plate,
		VIN:          o.VIN,
		Mileage:      o.Mileage,
		City:         o.City,
		DocDate:      o.Date,
		SourceName:   req.SourceName,
		ReviewReason: o.ReviewReason,
		Items:        items,
	}
	if err := s.batches.Create(ctx, b); err != nil {
		return nil, common.WrapError(err, "create batch")
	}

	s.metrics.Transition(string(b.Status))
	s.publish(ctx, events.Event{
		Type:     events.TypeBatchIngested,
		BatchID:  b.ID,
		Status:   string(b.Status),
		Warnings: len(req.Validation.Warnings),
		Week:     b.WeekLabel,
	})
	s.logger.Info("batch.ingest",
		"batch_id", b.ID,
		"status", b.Status,
		"items", len(items),
		"warnings", len(req.Validation.Warnings),
		"catalog_skipped", req.Validation.Skipped,
		"vehicle", req.Order.Identifier(),
		"source", req.SourceName,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// Approve marks the batch APPROVED. Approving an approved batch is a no-op.
func (s *Service) Approve(ctx context.Context, id int64) (*entity.OrderBatch, error) {
	if err := s.access.Check(ctx, "approve"); err != nil {
		return nil, err
	}
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == constants.BatchStatusApproved {
		s.logger.Debug("batch.approve.noop", "batch_id", id)
		return b, nil
	}
	if err := s.batches.SetStatus(ctx, id, constants.BatchStatusApproved); err != nil {
		return nil, s.mapErr(err, "approve batch")
	}
	b.Status = constants.BatchStatusApproved

	actor, _ := common.ActorIDFromContext(ctx)
	s.metrics.Transition(string(b.Status))
	s.publish(ctx, events.Event{Type: events.TypeBatchApproved, BatchID: id, Status: string(b.Status), ActorID: actor, Week: b.WeekLabel})
	s.logger.Info("batch.approve", "batch_id", id, "actor_id", actor)
	return b, nil
}

// Reject returns the batch to NEEDS_REVIEW and records the reason. Items are untouched.
func (s *Service) Reject(ctx context.Context, id int64, reason string) (*entity.OrderBatch, error) {
	if err := s.access.Check(ctx, "reject"); err != nil {
		return nil, err
	}
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	var r *string
	if reason = strings.TrimSpace(reason); reason != "" {
		r = &reason
	}
	if err := s.batches.Reject(ctx, id, r); err != nil {
		return nil, s.mapErr(err, "reject batch")
	}
	b.Status = constants.BatchStatusNeedsReview
	b.RejectReason = r

	actor, _ := common.ActorIDFromContext(ctx)
	s.metrics.Transition(string(b.Status))
	s.publish(ctx, events.Event{Type: events.TypeBatchRejected, BatchID: id, Status: string(b.Status), Reason: reason, ActorID: actor, Week: b.WeekLabel})
	s.logger.Info("batch.reject", "batch_id", id, "actor_id", actor, "reason", reason)
	return b, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.OrderBatch, error) {
	if err := s.access.Check(ctx, "get_batch"); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]entity.OrderBatch, error) {
	if err := s.access.Check(ctx, "list_batches"); err != nil {
		return nil, err
	}
	return s.batches.List(ctx, repository.BatchFilter{})
}

func (s *Service) ListNeedsReview(ctx context.Context) ([]entity.OrderBatch, error) {
	if err := s.access.Check(ctx, "list_review"); err != nil {
		return nil, err
	}
	return s.batches.List(ctx, repository.BatchFilter{Status: constants.BatchStatusNeedsReview})
}

func (s *Service) ListStations(ctx context.Context) ([]entity.Station, error) {
	if err := s.access.Check(ctx, "list_stations"); err != nil {
		return nil, err
	}
	return s.stations.List(ctx)
}

// ExportFilter narrows approved-batch selection for reports.
type ExportFilter struct {
	OperatorID *int64
	WeekLabel  string
}

// ApprovedBatches returns APPROVED batches only. Callers authorize.
func (s *Service) ApprovedBatches(ctx context.Context, f ExportFilter) ([]entity.OrderBatch, error) {
	return s.batches.List(ctx, repository.BatchFilter{
		Status:     constants.BatchStatusApproved,
		OperatorID: f.OperatorID,
		WeekLabel:  f.WeekLabel,
	})
}

// ExportApproved flattens approved batches into export rows.
func (s *Service) ExportApproved(ctx context.Context, f ExportFilter) ([]entity.ExportRow, error) {
	batches, err := s.ApprovedBatches(ctx, f)
	if err != nil {
		return nil, err
	}
	return Flatten(batches), nil
}

// Flatten turns batches into one row per item.
func Flatten(batches []entity.OrderBatch) []entity.ExportRow {
	rows := []entity.ExportRow{}
	for _, b := range batches {
		for _, it := range b.Items {
			mileage := b.Mileage
			if it.Mileage != nil && *it.Mileage != "" {
				mileage = *it.Mileage
			}
			rows = append(rows, entity.ExportRow{
				Station:   b.StationName,
				WeekLabel: b.WeekLabel,
				PlateVIN:  plateVIN(b),
				Mileage:   mileage,
				WorkName:  it.WorkName,
				Quantity:  it.Quantity,
				Price:     it.Price,
				Total:     it.Total,
			})
		}
	}
	return rows
}

func plateVIN(b entity.OrderBatch) string {
	switch {
	case b.Plate != "" && b.VIN != "":
		return b.Plate + " / " + b.VIN
	case b.Plate != "":
		return b.Plate
	default:
		return b.VIN
	}
}

func (s *Service) get(ctx context.Context, id int64) (*entity.OrderBatch, error) {
	b, err := s.batches.Get(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "get batch")
	}
	return b, nil
}

func (s *Service) mapErr(err error, op string) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NotFoundError(constants.MsgBatchNotFound)
	}
	s.logger.Error("batch.store.failed", "op", op, "error", err)
	return common.WrapError(err, op)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	e.Timestamp = s.now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("batch.event.publish_failed", "type", e.Type, "batch_id", e.BatchID, "error", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
