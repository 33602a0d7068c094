// Package normalize turns an uploaded file into an extraction-ready payload.
package normalize

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/common"
)

// Payload kinds.
const (
	KindImage = "image"
	KindText  = "text"
)

// DefaultScale is the PDF render scale relative to 72 dpi.
const DefaultScale = 2.0

type Config struct {
	Pdftoppm string  // binary name or absolute path; if empty -> "pdftoppm"
	Antiword string  // binary name or absolute path; if empty -> "antiword"
	Unrar    string  // binary name or absolute path; if empty -> "unrar"
	Scale    float64 // PDF render scale, default 2.0
	WorkDir  string  // parent for scratch directories; empty -> os.TempDir()

	MaxEntryBytes int64 // per-file cap when expanding archives, default 50MB
}

// Payload is what the extraction step consumes: either an inline image or plain text.
type Payload struct {
	Kind        string
	ImageBase64 string
	MimeType    string
	Text        string
	SourceName  string
}

type Normalizer struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

type Option func(*Normalizer)

// WithRunner replaces the external command runner.
func WithRunner(r Runner) Option {
	return func(n *Normalizer) {
		if r != nil {
			n.runner = r
		}
	}
}

// WithLookPath replaces the binary availability probe.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(n *Normalizer) {
		if fn != nil {
			n.lookPath = fn
		}
	}
}

func NewNormalizer(cfg Config, logger *slog.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Antiword == "" {
		cfg.Antiword = "antiword"
	}
	if cfg.Unrar == "" {
		cfg.Unrar = "unrar"
	}
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultScale
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.MaxEntryBytes <= 0 {
		cfg.MaxEntryBytes = 50 << 20
	}
	n := &Normalizer{
		cfg:      cfg,
		runner:   execRunner{logger: logger},
		lookPath: exec.LookPath,
		logger:   logger,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize picks the extraction path based on the file extension.
// Archives are not payloads; use Expand for them.
func (n *Normalizer) Normalize(ctx context.Context, path string) (Payload, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	format := constants.MapExtToFormat(ext)
	n.logger.Debug("normalize.start", "path", path, "ext", ext, "format", format)

	var (
		p   Payload
		err error
	)
	switch format {
	case constants.IMAGE:
		p, err = imagePayload(path, ext)
	case constants.PDF:
		p, err = n.pdfPayload(ctx, path)
	case constants.DOCX:
		var text string
		text, err = docxText(path)
		p = Payload{Kind: KindText, Text: text}
	case constants.DOC:
		var text string
		text, err = n.docText(ctx, path)
		p = Payload{Kind: KindText, Text: text}
	default:
		err = fmt.Errorf("unsupported extension: %q", ext)
	}
	if err != nil {
		n.logger.Warn("normalize.failed", "path", path, "format", format, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Payload{}, fmt.Errorf("%w: %v", common.ErrDocumentConversion, err)
	}

	p.SourceName = filepath.Base(path)
	n.logger.Info("normalize.ok", "path", path, "format", format, "kind", p.Kind,
		"elapsed_ms", time.Since(start).Milliseconds())
	return p, nil
}

func imagePayload(path, ext string) (Payload, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, err
	}
	if len(b) == 0 {
		return Payload{}, fmt.Errorf("empty image file")
	}
	return Payload{
		Kind:        KindImage,
		ImageBase64: base64.StdEncoding.EncodeToString(b),
		MimeType:    constants.ImageMimeType(ext),
	}, nil
}

func (n *Normalizer) docText(ctx context.Context, path string) (string, error) {
	out, errb, err := n.runner.Run(ctx, n.cfg.Antiword, path)
	if err != nil {
		return "", fmt.Errorf("antiword: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", fmt.Errorf("document has no text")
	}
	return text, nil
}
