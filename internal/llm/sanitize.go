package llm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	stringFields = []string{"plate", "vin", "mileage", "city", "date"}
	reNonNumeric = regexp.MustCompile(`[^0-9.\-]`)
)

// SanitizeOrder normalizes a decoded extraction object in place so that it
// can validate: strings are trimmed, numbers given as text are coerced,
// missing totals are derived, and items without a name are dropped.
// It returns what it dropped or renamed, for logging.
func SanitizeOrder(m map[string]any) []string {
	var dropped []string

	for _, k := range stringFields {
		switch t := m[k].(type) {
		case nil:
			delete(m, k)
		case string:
			m[k] = strings.TrimSpace(t)
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	switch t := m["needsOperatorReview"].(type) {
	case bool:
	case string:
		m["needsOperatorReview"] = strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		delete(m, "needsOperatorReview")
	}

	switch t := m["reviewReason"].(type) {
	case nil, string:
	default:
		m["reviewReason"] = fmt.Sprint(t)
	}

	rawItems, ok := m["items"].([]any)
	if !ok {
		return dropped
	}
	items := make([]any, 0, len(rawItems))
	for i, ri := range rawItems {
		it, ok := ri.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("items[%d](type)", i))
			continue
		}
		if _, has := it["workName"]; !has {
			if v, ok := it["name"]; ok {
				it["workName"] = v
				delete(it, "name")
				dropped = append(dropped, fmt.Sprintf("items[%d].name->workName", i))
			}
		}
		name, _ := it["workName"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			dropped = append(dropped, fmt.Sprintf("items[%d](no name)", i))
			continue
		}
		it["workName"] = name

		qty, okQty := ParseAmount(it["quantity"])
		if !okQty {
			qty = 1
		}
		price, okPrice := ParseAmount(it["price"])
		total, okTotal := ParseAmount(it["total"])
		if !okTotal && okPrice {
			total = round2(qty * price)
		}
		if !okPrice && okTotal && qty != 0 {
			price = round2(total / qty)
		}
		it["quantity"] = qty
		it["price"] = price
		it["total"] = total
		items = append(items, it)
	}
	m["items"] = items
	return dropped
}

// ParseAmount reads a number that may arrive as JSON number or as text such
// as "1 200,50 руб.". Decimal commas become dots.
func ParseAmount(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		s = reNonNumeric.ReplaceAllString(s, "")
		s = strings.TrimRight(s, ".")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
