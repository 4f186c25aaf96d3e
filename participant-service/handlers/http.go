package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/relaymart/order-system/participant-service/domain"
)

// ParticipantHandlers exposes one participant's reserve and cancel endpoints.
type ParticipantHandlers struct {
	participant domain.Participant
}

// NewParticipantHandlers creates handlers for a participant.
func NewParticipantHandlers(participant domain.Participant) *ParticipantHandlers {
	return &ParticipantHandlers{participant: participant}
}

type cancelRequest struct {
	OrderID string `json:"order_id"`
}

type reservationResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Reserve handles POST /{role}/reserve. Business failures (forced or payload
// validation) come back as 409/400 with a JSON detail the orchestrator can
// surface in its step log.
func (h *ParticipantHandlers) Reserve(w http.ResponseWriter, r *http.Request) {
	var cmd domain.ReserveCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if cmd.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	outcome := h.participant.Reserve(r.Context(), cmd)
	if outcome.Failed() {
		status := http.StatusConflict
		if outcome.Reason == domain.ReasonQuantityRequired || outcome.Reason == domain.ReasonSlotRequired {
			status = http.StatusBadRequest
		}
		writeError(w, status, outcome.Reason)
		return
	}

	writeJSON(w, http.StatusOK, reservationResponse{Status: "reserved", OrderID: cmd.OrderID})
}

// Cancel handles POST /{role}/cancel. Always succeeds for well-formed
// requests: cancelling an absent reservation is a no-op.
func (h *ParticipantHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	outcome := h.participant.Cancel(r.Context(), req.OrderID)
	if outcome.Failed() {
		writeError(w, http.StatusConflict, outcome.Reason)
		return
	}

	writeJSON(w, http.StatusOK, reservationResponse{Status: "cancelled", OrderID: req.OrderID})
}

// Health reports liveness together with the participant's role.
func (h *ParticipantHandlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"role":   string(h.participant.Role()),
	})
}

// RegisterRoutes mounts the participant's routes under its role prefix.
func (h *ParticipantHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/"+string(h.participant.Role()), func(r chi.Router) {
		r.Post("/reserve", h.Reserve)
		r.Post("/cancel", h.Cancel)
	})
	r.Get("/health", h.Health)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
