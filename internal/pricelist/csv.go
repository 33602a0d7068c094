package pricelist

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

var rePriceJunk = regexp.MustCompile(`[^0-9.]`)

// SplitCSVLine splits one CSV line on commas, leaving commas inside
// double-quoted fields alone. A doubled quote inside quotes is a literal quote.
func SplitCSVLine(line string) []string {
	var (
		fields   []string
		cur      strings.Builder
		inQuotes bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' && inQuotes && i+1 < len(runes) && runes[i+1] == '"':
			cur.WriteRune('"')
			i++
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(cur.String()))
}

// ParsePrice converts a decimal comma to a dot, strips everything that is
// not a digit or a dot, and parses. Unparsable input yields zero; that
// includes thousands written with dots ("1.200.50"), which are not guessed.
func ParsePrice(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.Trim(rePriceJunk.ReplaceAllString(s, ""), ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// ParseCatalog reads a catalog export with positional columns
// code, name, price, unit. The header row is skipped and rows with an
// empty name are discarded.
func ParseCatalog(body string) []entity.PriceItem {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	if len(lines) <= 1 {
		return []entity.PriceItem{}
	}
	items := make([]entity.PriceItem, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f := SplitCSVLine(line)
		for len(f) < 4 {
			f = append(f, "")
		}
		if f[1] == "" {
			continue
		}
		items = append(items, entity.PriceItem{
			Code:  f[0],
			Name:  f[1],
			Price: ParsePrice(f[2]),
			Unit:  f[3],
		})
	}
	return items
}
