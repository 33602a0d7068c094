package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/async"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/services/ingest"
)

// Upload accepts multipart form fields file, station, operator (tg id) and
// handle, spools the file to disk and queues it.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	ext := constants.NormalizeExt(filepath.Ext(name))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		respondError(w, http.StatusBadRequest, common.UserMessage(
			common.InvalidArgumentErrorf(constants.ReasonUnsupportedFormat, name), "unsupported format"))
		return
	}

	var tgID int64
	if v := strings.TrimSpace(r.FormValue("operator")); v != "" {
		if tgID, err = strconv.ParseInt(v, 10, 64); err != nil {
			respondError(w, http.StatusBadRequest, "operator must be numeric")
			return
		}
	} else if actor, ok := common.ActorIDFromContext(r.Context()); ok {
		tgID = actor
	}

	path, err := h.spool(file, ext)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	jobID := uuid.New()
	rid := common.RequestIDFromContext(r.Context())
	logger := h.logger
	err = h.d.Queue.Enqueue(r.Context(), async.Job{
		ID: jobID,
		Upload: ingest.Upload{
			Path:           path,
			SourceName:     name,
			StationName:    r.FormValue("station"),
			OperatorTgID:   tgID,
			OperatorHandle: r.FormValue("handle"),
		},
		SubmittedAt: time.Now(),
		RequestID:   rid,
		Done: func(_ *ingest.Result, _ error) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warn("http.upload.cleanup_failed", "path", path, "error", err)
			}
		},
	})
	if err != nil {
		_ = os.Remove(path)
		h.fail(w, r, err)
		return
	}
	h.logger.Info("http.upload.queued", "job_id", jobID, "source", name, "bytes", header.Size, "request_id", rid)
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

func (h *Handler) spool(src io.Reader, ext string) (string, error) {
	dir := h.d.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "upload-*."+ext)
	if err != nil {
		return "", common.WrapError(err, "create upload file")
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", common.WrapError(err, "write upload file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", common.WrapError(err, "close upload file")
	}
	return f.Name(), nil
}
