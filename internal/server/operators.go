package server

import (
	"net/http"

	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/services/operator"
)

func (h *Handler) ListOperators(w http.ResponseWriter, r *http.Request) {
	out, err := h.d.Operators.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

type registerRequest struct {
	TgID     int64  `json:"tg_id"`
	Handle   string `json:"handle"`
	Nickname string `json:"nickname"`
}

// RegisterOperator is the one-shot form that bypasses the conversation.
func (h *Handler) RegisterOperator(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	op, err := h.d.Operators.Register(r.Context(), operator.RegisterRequest{
		TgID:     req.TgID,
		Handle:   req.Handle,
		Nickname: req.Nickname,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, op)
}

func (h *Handler) RemoveOperator(w http.ResponseWriter, r *http.Request) {
	tgID, err := pathInt64(r, "tg_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.d.Operators.Remove(r.Context(), tgID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) StartOnboarding(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, HeaderActorID+" is required")
		return
	}
	reply, err := h.d.Onboarding.Start(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

type messageRequest struct {
	Text   string `json:"text"`
	Handle string `json:"handle"`
}

// OnboardingMessage receives a chat message from any identity. The sender
// is recorded as seen; admins with a pending conversation get a reply.
func (h *Handler) OnboardingMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, HeaderActorID+" is required")
		return
	}
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.d.Operators.RecordSeen(r.Context(), actor, req.Handle); err != nil {
		h.logger.Warn("http.onboarding.record_seen_failed", "actor_id", actor, "error", err)
	}
	reply, err := h.d.Onboarding.Handle(r.Context(), actor, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}
