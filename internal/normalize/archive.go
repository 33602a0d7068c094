package normalize

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/repair-orders/constants"
)

// ErrRarUnsupported is returned when no rar decompressor is installed.
var ErrRarUnsupported = errors.New("rar decompressor not available")

// Expanded is the flat list of files unpacked from one archive.
// Cleanup removes the scratch directory and must always be called.
type Expanded struct {
	Files   []string
	Cleanup func()
}

// Expand unpacks an archive into a scratch directory. It does not recurse:
// nested archives come back as plain entries and the caller decides.
func (n *Normalizer) Expand(ctx context.Context, path string) (Expanded, error) {
	format := constants.MapExtToFormat(filepath.Ext(path))
	if format != constants.ZIP && format != constants.RAR {
		return Expanded{}, fmt.Errorf("not an archive: %s", filepath.Base(path))
	}
	if format == constants.RAR {
		if _, err := n.lookPath(n.cfg.Unrar); err != nil {
			n.logger.Warn("normalize.rar.skipped", "path", path, "reason", "unrar not installed")
			return Expanded{}, ErrRarUnsupported
		}
	}

	tmpDir, err := os.MkdirTemp(n.cfg.WorkDir, "ro-arc-*")
	if err != nil {
		return Expanded{}, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			n.logger.Warn("normalize.archive.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}

	if format == constants.ZIP {
		err = n.unzip(path, tmpDir)
	} else {
		err = n.unrar(ctx, path, tmpDir)
	}
	if err != nil {
		cleanup()
		return Expanded{}, err
	}

	files, err := listFlat(tmpDir)
	if err != nil {
		cleanup()
		return Expanded{}, err
	}
	n.logger.Info("normalize.archive.ok", "path", path, "files", len(files))
	return Expanded{Files: files, Cleanup: cleanup}, nil
}

func (n *Normalizer) unzip(path, dst string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for i, f := range zr.File {
		if f.FileInfo().IsDir() || skipEntry(f.Name) {
			continue
		}
		// flatten; the index keeps same-named entries from different folders apart
		name := strconv.Itoa(i) + "_" + filepath.Base(f.Name)
		if err := n.extractZipEntry(f, filepath.Join(dst, name)); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func (n *Normalizer) extractZipEntry(f *zip.File, out string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := os.Create(out)
	if err != nil {
		return err
	}
	written, err := io.Copy(w, io.LimitReader(rc, n.cfg.MaxEntryBytes+1))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if written > n.cfg.MaxEntryBytes {
		return fmt.Errorf("entry exceeds %d bytes", n.cfg.MaxEntryBytes)
	}
	return nil
}

func (n *Normalizer) unrar(ctx context.Context, path, dst string) error {
	// unrar e: extract without stored paths, which gives the flat layout
	_, errb, err := n.runner.Run(ctx, n.cfg.Unrar, "e", "-o+", "-y", "-inul", path, dst+string(os.PathSeparator))
	if err != nil {
		return fmt.Errorf("unrar: %w: %s", err, string(errb))
	}
	return nil
}

func skipEntry(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(base, ".")
}

func listFlat(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || skipEntry(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
