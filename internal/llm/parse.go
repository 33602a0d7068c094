package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

// reasonSnippet caps raw content quoted in a review reason.
const reasonSnippet = 200

// StripCodeFence removes a surrounding markdown fence, with or without a
// language tag. Text without a leading fence is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// the remainder of the opening line is the language tag
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimLeft(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractBraced returns the span from the first '{' to the last '}'.
func ExtractBraced(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// DecodeObject runs the recovery ladder: fence strip, direct parse, then
// the first-to-last brace span.
func DecodeObject(raw string) (map[string]any, error) {
	cleaned := StripCodeFence(raw)

	var m map[string]any
	if err := json.Unmarshal([]byte(cleaned), &m); err == nil && m != nil {
		return m, nil
	}
	if braced, ok := ExtractBraced(cleaned); ok {
		m = nil
		if err := json.Unmarshal([]byte(braced), &m); err == nil && m != nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON object in response", common.ErrExtractionContract)
}

type wireOrder struct {
	Plate               string              `json:"plate"`
	VIN                 string              `json:"vin"`
	Mileage             string              `json:"mileage"`
	City                string              `json:"city"`
	Date                string              `json:"date"`
	Items               []entity.ParsedItem `json:"items"`
	NeedsOperatorReview bool                `json:"needsOperatorReview"`
	ReviewReason        *string             `json:"reviewReason"`
}

// ParseResponse turns the extraction answer into a ParsedOrder. It never
// fails: anything it cannot understand becomes a review stub.
func ParseResponse(raw string, logger *slog.Logger) entity.ParsedOrder {
	if logger == nil {
		logger = slog.Default()
	}

	cleaned := StripCodeFence(raw)
	doc, err := DecodeObject(cleaned)
	if err != nil {
		logger.Warn("llm.parse.contract_violation", "error", err, "raw_bytes", len(raw))
		return entity.ReviewStub(fmt.Sprintf(constants.ReasonUnparsedResponse, snippet(raw)), raw)
	}

	dropped := SanitizeOrder(doc)
	if len(dropped) > 0 {
		logger.Warn("llm.parse.sanitize", "dropped", dropped)
	}
	schemaErr := ValidateOrder(doc)
	if _, ok := doc["items"].([]any); !ok {
		doc["items"] = []any{}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return entity.ReviewStub(fmt.Sprintf(constants.ReasonUnparsedResponse, err.Error()), raw)
	}
	var w wireOrder
	if err := json.Unmarshal(b, &w); err != nil {
		// types are already coerced; this only trips on exotic shapes
		logger.Warn("llm.parse.shape_mismatch", "error", err)
		w = wireOrder{}
		if schemaErr == nil {
			schemaErr = err
		}
	}

	out := entity.ParsedOrder{
		Plate:               w.Plate,
		VIN:                 w.VIN,
		Mileage:             w.Mileage,
		City:                w.City,
		Date:                w.Date,
		Items:               w.Items,
		NeedsOperatorReview: w.NeedsOperatorReview,
		ReviewReason:        w.ReviewReason,
		RawText:             cleaned,
	}
	if out.Items == nil {
		out.Items = []entity.ParsedItem{}
	}
	if schemaErr != nil {
		logger.Warn("llm.parse.schema_violation",
			"error", fmt.Errorf("%w: %v", common.ErrExtractionContract, schemaErr))
		reason := fmt.Sprintf(constants.ReasonSchemaViolation, snippet(schemaErr.Error()))
		out.NeedsOperatorReview = true
		if out.ReviewReason != nil && *out.ReviewReason != "" {
			reason = *out.ReviewReason + "; " + reason
		}
		out.ReviewReason = &reason
	}
	return out
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > reasonSnippet {
		return string(r[:reasonSnippet]) + "…"
	}
	return s
}
