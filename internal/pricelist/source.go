package pricelist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

// Source fetches the authoritative catalog. Fetches are idempotent and
// side-effect free, so concurrent calls are harmless.
type Source interface {
	FetchCatalog(ctx context.Context) ([]entity.PriceItem, error)
}

// HTTPSource reads a published CSV export.
type HTTPSource struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewHTTPSource(url string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSource{url: url, client: &http.Client{Timeout: timeout}, logger: logger}
}

func (s *HTTPSource) FetchCatalog(ctx context.Context) ([]entity.PriceItem, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			s.logger.Warn("pricelist.http.body_close_error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch catalog: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	items := ParseCatalog(string(body))
	s.logger.Info("pricelist.http.fetched",
		"bytes", len(body),
		"items", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return items, nil
}

// StaticSource serves a fixed catalog.
type StaticSource []entity.PriceItem

func (s StaticSource) FetchCatalog(context.Context) ([]entity.PriceItem, error) {
	return []entity.PriceItem(s), nil
}
