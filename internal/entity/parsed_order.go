package entity

// ParsedItem is one work/part line as returned by extraction.
type ParsedItem struct {
	WorkName string  `json:"workName"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

// ParsedOrder is the canonical record produced once per document.
// It is never mutated after creation.
type ParsedOrder struct {
	Plate               string       `json:"plate"`
	VIN                 string       `json:"vin"`
	Mileage             string       `json:"mileage"`
	City                string       `json:"city"`
	Date                string       `json:"date"`
	Items               []ParsedItem `json:"items"`
	NeedsOperatorReview bool         `json:"needsOperatorReview"`
	ReviewReason        *string      `json:"reviewReason,omitempty"`
	RawText             string       `json:"rawText,omitempty"`
}

// ReviewStub returns the safe, human-reviewable record used whenever a
// document cannot be converted or understood.
func ReviewStub(reason, rawText string) ParsedOrder {
	return ParsedOrder{
		Items:               []ParsedItem{},
		NeedsOperatorReview: true,
		ReviewReason:        &reason,
		RawText:             rawText,
	}
}

// Identifier returns the plate, or the VIN when no plate was recognized.
func (p ParsedOrder) Identifier() string {
	if p.Plate != "" {
		return p.Plate
	}
	return p.VIN
}
