// Package extract is the boundary between documents and parsed orders:
// whatever happens inside, callers always get a routable ParsedOrder.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/llm"
	"github.com/joseph-ayodele/repair-orders/internal/metrics"
	"github.com/joseph-ayodele/repair-orders/internal/normalize"
)

// DocumentNormalizer is the part of normalize.Normalizer the adapter needs.
type DocumentNormalizer interface {
	Normalize(ctx context.Context, path string) (normalize.Payload, error)
}

type Adapter struct {
	normalizer DocumentNormalizer
	extractor  llm.Extractor
	timeout    time.Duration
	metrics    *metrics.Registry
	logger     *slog.Logger
}

func NewAdapter(n DocumentNormalizer, x llm.Extractor, timeout time.Duration, m *metrics.Registry, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{normalizer: n, extractor: x, timeout: timeout, metrics: m, logger: logger}
}

// FromFile normalizes and extracts one non-archive document.
func (a *Adapter) FromFile(ctx context.Context, path string) (out entity.ParsedOrder) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("extract.panic", "path", path, "panic", r)
			a.metrics.ReviewStub("panic")
			out = entity.ReviewStub(fmt.Sprintf(constants.ReasonConversionFailed, fmt.Sprint(r)), "")
		}
	}()

	a.metrics.Document(constants.MapExtToFormat(filepath.Ext(path)))
	payload, err := a.normalizer.Normalize(ctx, path)
	if err != nil {
		cause := "conversion"
		if !errors.Is(err, common.ErrDocumentConversion) {
			cause = "normalize"
		}
		a.metrics.ReviewStub(cause)
		return entity.ReviewStub(fmt.Sprintf(constants.ReasonConversionFailed, err.Error()), "")
	}
	return a.FromPayload(ctx, payload)
}

// FromPayload sends an extraction-ready payload to the extraction capability
// and parses the answer with fence and brace recovery.
func (a *Adapter) FromPayload(ctx context.Context, p normalize.Payload) entity.ParsedOrder {
	start := time.Now()
	req := llm.Request{
		Instruction: llm.BuildInstruction(),
		Text:        p.Text,
		ImageBase64: p.ImageBase64,
		MimeType:    p.MimeType,
		SourceName:  p.SourceName,
	}

	callCtx, cancel := common.WithTimeout(ctx, a.timeout)
	defer cancel()
	raw, err := a.extractor.Extract(callCtx, req)
	a.metrics.ObserveExtraction(time.Since(start).Seconds())
	if err != nil {
		a.logger.Error("extract.call_failed", "source", p.SourceName, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		a.metrics.ReviewStub("extraction")
		return entity.ReviewStub(fmt.Sprintf(constants.ReasonExtractionFailed, err.Error()), p.Text)
	}

	order := llm.ParseResponse(raw, a.logger)
	if order.NeedsOperatorReview && len(order.Items) == 0 {
		a.metrics.ReviewStub("contract")
	}
	a.logger.Info("extract.ok",
		"source", p.SourceName,
		"kind", p.Kind,
		"plate", order.Plate,
		"items", len(order.Items),
		"needs_review", order.NeedsOperatorReview,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return order
}
