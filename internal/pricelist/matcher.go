package pricelist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/metrics"
)

// Match finds the catalog entry for an item name: an exact case-insensitive
// match on name or code first, then the first entry (in catalog order)
// whose name contains the item name or is contained in it.
func Match(catalog []entity.PriceItem, workName string) (entity.PriceItem, bool) {
	needle := strings.ToLower(strings.TrimSpace(workName))
	if needle == "" {
		return entity.PriceItem{}, false
	}
	for _, p := range catalog {
		if strings.ToLower(strings.TrimSpace(p.Name)) == needle ||
			(p.Code != "" && strings.ToLower(strings.TrimSpace(p.Code)) == needle) {
			return p, true
		}
	}
	for _, p := range catalog {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			continue
		}
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return p, true
		}
	}
	return entity.PriceItem{}, false
}

// Overage returns the warning for an item priced above its catalog match.
func Overage(item entity.ParsedItem, match entity.PriceItem) (string, bool) {
	if match.Price <= 0 || item.Price <= match.Price {
		return "", false
	}
	submitted := decimal.NewFromFloat(item.Price)
	listed := decimal.NewFromFloat(match.Price)
	diff := submitted.Sub(listed)
	return fmt.Sprintf(constants.OverageWarning, item.WorkName, submitted.String(), listed.String(), diff.String()), true
}

// Result is the outcome of validating one document's items.
// ItemErrors is index-aligned with the input items.
type Result struct {
	Warnings   []string  `json:"warnings"`
	ItemErrors []*string `json:"itemErrors"`
	Skipped    bool      `json:"skipped"`
}

// CatalogProvider is satisfied by *Cache.
type CatalogProvider interface {
	Items(ctx context.Context) ([]entity.PriceItem, error)
}

type Validator struct {
	catalog CatalogProvider
	metrics *metrics.Registry
	logger  *slog.Logger
}

func NewValidator(catalog CatalogProvider, m *metrics.Registry, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{catalog: catalog, metrics: m, logger: logger}
}

// Validate checks items against the catalog. If no catalog can be had the
// run is skipped and items pass through untouched.
func (v *Validator) Validate(ctx context.Context, items []entity.ParsedItem) Result {
	res := Result{ItemErrors: make([]*string, len(items))}
	if v.catalog == nil {
		res.Skipped = true
		return res
	}
	catalog, err := v.catalog.Items(ctx)
	if err != nil {
		if errors.Is(err, common.ErrPriceSourceUnavailable) {
			v.logger.Warn("pricelist.validate.skipped", "error", err, "items", len(items))
		} else {
			v.logger.Error("pricelist.validate.skipped", "error", err, "items", len(items))
		}
		res.Skipped = true
		return res
	}

	for i, it := range items {
		match, ok := Match(catalog, it.WorkName)
		if !ok {
			continue
		}
		if w, over := Overage(it, match); over {
			res.Warnings = append(res.Warnings, w)
			res.ItemErrors[i] = &w
		}
	}
	v.metrics.Overages(len(res.Warnings))
	if len(res.Warnings) > 0 {
		v.logger.Info("pricelist.validate.overages", "items", len(items), "warnings", len(res.Warnings))
	}
	return res
}
