package normalize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joseph-ayodele/repair-orders/constants"
)

// pdfPayload renders the first page only and routes it through the image path.
// The scratch directory is removed on every exit path.
func (n *Normalizer) pdfPayload(ctx context.Context, path string) (Payload, error) {
	tmpDir, err := os.MkdirTemp(n.cfg.WorkDir, "ro-pdf-*")
	if err != nil {
		return Payload{}, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			n.logger.Warn("normalize.pdf.cleanup_failed", "dir", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	dpi := strconv.Itoa(int(72 * n.cfg.Scale))
	// pdftoppm -f 1 -l 1 -r 144 -png -singlefile <in.pdf> <tmp/page>
	_, errb, err := n.runner.Run(ctx, n.cfg.Pdftoppm,
		"-f", "1", "-l", "1", "-r", dpi, "-png", "-singlefile", path, prefix)
	if err != nil {
		return Payload{}, fmt.Errorf("pdftoppm: %w: %s", err, string(errb))
	}

	out := prefix + ".png"
	if _, statErr := os.Stat(out); statErr != nil {
		return Payload{}, fmt.Errorf("pdftoppm produced no image: %v", statErr)
	}
	return imagePayload(out, constants.NormalizeExt(filepath.Ext(out)))
}
