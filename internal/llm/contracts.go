package llm

import "context"

// Request is one call to the extraction capability: the fixed instruction
// plus either document text or an inline image.
type Request struct {
	Instruction string
	Text        string
	ImageBase64 string
	MimeType    string
	SourceName  string
}

// HasImage reports whether an inline image is attached.
func (r Request) HasImage() bool {
	return r.ImageBase64 != ""
}

// Extractor is the external extraction capability. It returns the model's
// free-form answer; callers must not assume it honors the JSON contract.
type Extractor interface {
	Extract(ctx context.Context, req Request) (string, error)
}
