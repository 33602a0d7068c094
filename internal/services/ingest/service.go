package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/normalize"
	"github.com/joseph-ayodele/repair-orders/internal/pricelist"
	"github.com/joseph-ayodele/repair-orders/internal/repository"
	"github.com/joseph-ayodele/repair-orders/internal/services/batch"
)

// Expander unpacks archives one level deep.
type Expander interface {
	Expand(ctx context.Context, path string) (normalize.Expanded, error)
}

// Extractor turns one document into a parsed order and never fails.
type Extractor interface {
	FromFile(ctx context.Context, path string) entity.ParsedOrder
}

// Validator checks items against the price catalog.
type Validator interface {
	Validate(ctx context.Context, items []entity.ParsedItem) pricelist.Result
}

// BatchIngester stores one parsed document as a batch.
type BatchIngester interface {
	Ingest(ctx context.Context, req batch.IngestRequest) (*entity.OrderBatch, error)
}

// Operators resolves and records submitter identities.
type Operators interface {
	Lookup(ctx context.Context, tgID int64) (*entity.Operator, error)
	RecordSeen(ctx context.Context, tgID int64, handle string) error
}

// Service handles ingestion business logic.
type Service struct {
	expander  Expander
	extractor Extractor
	validator Validator
	batches   BatchIngester
	stations  repository.StationRepository
	operators Operators
	logger    *slog.Logger
}

// NewService creates a new ingest service.
func NewService(exp Expander, ext Extractor, val Validator, b BatchIngester, st repository.StationRepository, ops Operators, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		expander:  exp,
		extractor: ext,
		validator: val,
		batches:   b,
		stations:  st,
		operators: ops,
		logger:    logger,
	}
}

// Upload is one submitted file.
type Upload struct {
	Path           string
	SourceName     string
	StationName    string
	OperatorTgID   int64
	OperatorHandle string
}

// FileResult is the outcome for one document (an archive yields several).
type FileResult struct {
	SourceName   string                `json:"source_name"`
	BatchID      int64                 `json:"batch_id,omitempty"`
	Status       constants.BatchStatus `json:"status,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
	ReviewReason string                `json:"review_reason,omitempty"`
	Skipped      bool                  `json:"skipped,omitempty"`
	Err          string                `json:"error,omitempty"`
}

// Result collects per-document outcomes of one upload.
type Result struct {
	Files []FileResult `json:"files"`
}

// IngestFile runs one upload through the pipeline. Archives are expanded
// one level; nested archives and unsupported entries are skipped.
func (s *Service) IngestFile(ctx context.Context, up Upload) (*Result, error) {
	path := strings.TrimSpace(up.Path)
	if path == "" {
		return nil, common.InvalidArgumentErrorf("path is required")
	}
	name := up.SourceName
	if name == "" {
		name = filepath.Base(path)
	}
	ext := filepath.Ext(name)
	if _, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]; !ok {
		s.logger.Warn("ingest.unsupported", "source", name)
		return nil, common.InvalidArgumentErrorf(constants.ReasonUnsupportedFormat, name)
	}

	start := time.Now()
	if err := s.operators.RecordSeen(ctx, up.OperatorTgID, up.OperatorHandle); err != nil {
		s.logger.Warn("ingest.record_seen_failed", "tg_id", up.OperatorTgID, "error", err)
	}
	target, err := s.resolveTarget(ctx, up)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if constants.IsArchive(ext) {
		s.ingestArchive(ctx, path, name, target, res)
	} else {
		res.Files = append(res.Files, s.ingestOne(ctx, path, name, target))
	}

	s.logger.Info("ingest.done",
		"source", name,
		"documents", len(res.Files),
		"station_id", target.stationID,
		"operator_id", target.operatorID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

type target struct {
	stationID  *int64
	operatorID *int64
}

func (s *Service) resolveTarget(ctx context.Context, up Upload) (target, error) {
	var t target
	if strings.TrimSpace(up.StationName) != "" {
		st, err := s.stations.GetOrCreate(ctx, up.StationName, "")
		if err != nil {
			return t, common.WrapError(err, "resolve station")
		}
		t.stationID = &st.ID
	}
	if up.OperatorTgID > 0 {
		op, err := s.operators.Lookup(ctx, up.OperatorTgID)
		if err != nil {
			return t, common.WrapError(err, "resolve operator")
		}
		if op != nil {
			t.operatorID = &op.ID
		}
	}
	return t, nil
}

func (s *Service) ingestArchive(ctx context.Context, path, name string, t target, res *Result) {
	exp, err := s.expander.Expand(ctx, path)
	if err != nil {
		if errors.Is(err, normalize.ErrRarUnsupported) {
			s.logger.Warn("ingest.archive.skipped", "source", name, "reason", err.Error())
			res.Files = append(res.Files, FileResult{SourceName: name, Skipped: true, Err: err.Error()})
			return
		}
		// an unreadable archive still becomes a reviewable batch
		s.logger.Error("ingest.archive.failed", "source", name, "error", err)
		stub := entity.ReviewStub(fmt.Sprintf(constants.ReasonConversionFailed, err), "")
		res.Files = append(res.Files, s.store(ctx, stub, name, t))
		return
	}
	defer exp.Cleanup()

	for _, f := range exp.Files {
		entry := name + "/" + filepath.Base(f)
		ext := filepath.Ext(f)
		switch {
		case constants.IsArchive(ext):
			s.logger.Warn("ingest.archive.nested_skipped", "entry", entry)
			res.Files = append(res.Files, FileResult{SourceName: entry, Skipped: true, Err: "nested archive"})
			continue
		case constants.MapExtToFormat(ext) == constants.UNKNOWN:
			s.logger.Info("ingest.archive.entry_skipped", "entry", entry)
			res.Files = append(res.Files, FileResult{SourceName: entry, Skipped: true,
				Err: fmt.Sprintf(constants.ReasonUnsupportedFormat, filepath.Base(f))})
			continue
		}
		res.Files = append(res.Files, s.ingestOne(ctx, f, entry, t))
	}
}

func (s *Service) ingestOne(ctx context.Context, path, name string, t target) FileResult {
	return s.store(ctx, s.extractor.FromFile(ctx, path), name, t)
}

func (s *Service) store(ctx context.Context, order entity.ParsedOrder, name string, t target) FileResult {
	validation := s.validator.Validate(ctx, order.Items)

	b, err := s.batches.Ingest(ctx, batch.IngestRequest{
		Order:      order,
		Validation: validation,
		StationID:  t.stationID,
		OperatorID: t.operatorID,
		SourceName: name,
	})
	if err != nil {
		s.logger.Error("ingest.batch_failed", "source", name, "error", err)
		return FileResult{SourceName: name, Err: err.Error()}
	}

	fr := FileResult{SourceName: name, BatchID: b.ID, Status: b.Status, Warnings: validation.Warnings}
	if order.ReviewReason != nil {
		fr.ReviewReason = *order.ReviewReason
	}
	return fr
}
