package llm

import "strings"

// maxTextChars caps document text sent to the model.
const maxTextChars = 12000

// BuildInstruction returns the fixed instruction requesting a strict JSON object.
func BuildInstruction() string {
	parts := []string{
		"You are a parser of vehicle repair orders (заказ-наряд) from Russian service stations.",
		"Return ONLY one JSON object, no prose, no markdown.",
		`Shape: {"plate": string, "vin": string, "mileage": string, "city": string, "date": "YYYY-MM-DD",` +
			` "items": [{"workName": string, "quantity": number, "price": number, "total": number}],` +
			` "needsOperatorReview": boolean, "reviewReason": string|null}.`,
		"plate is the Russian state registration number as printed; vin is 17 characters if visible.",
		"List every work and part line in document order. price is per unit, total is the line sum, both in rubles without currency signs.",
		"If a value is not present use an empty string; never invent numbers.",
		"Set needsOperatorReview to true and explain in reviewReason (in Russian) when the document is unreadable, is not a repair order, or totals do not add up.",
	}
	return strings.Join(parts, " ")
}

// BuildUserText packages the document text, or a short note when an image is attached.
func BuildUserText(req Request) string {
	var b strings.Builder
	if name := strings.TrimSpace(req.SourceName); name != "" {
		b.WriteString("Filename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	if req.HasImage() {
		b.WriteString("The repair order is attached as an image.")
		return b.String()
	}
	text := strings.TrimSpace(req.Text)
	b.WriteString("\nDocument text:\n")
	if r := []rune(text); len(r) > maxTextChars {
		b.WriteString(string(r[:maxTextChars]))
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
