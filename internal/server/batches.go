package server

import (
	"net/http"
	"strconv"
	"time"
)

func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Batches.ListStations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Batches.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) ListReview(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Batches.ListNeedsReview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.d.Batches.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.d.Batches.Approve(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	b, err := h.d.Batches.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *Handler) ExportApproved(w http.ResponseWriter, r *http.Request) {
	data, err := h.d.Export.ExportApprovedXLSX(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondXLSX(w, "approved_"+time.Now().UTC().Format("20060102")+".xlsx", data)
}

// OperatorReport serves ?operator=<tg id>[&week=YYYY-Www].
func (h *Handler) OperatorReport(w http.ResponseWriter, r *http.Request) {
	tgID, err := strconv.ParseInt(r.URL.Query().Get("operator"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "operator must be numeric")
		return
	}
	week := r.URL.Query().Get("week")
	data, err := h.d.Export.OperatorReportXLSX(r.Context(), tgID, week)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondXLSX(w, "report_"+strconv.FormatInt(tgID, 10)+".xlsx", data)
}
