package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/relaymart/order-system/orchestrator-service/application"
	"github.com/relaymart/order-system/orchestrator-service/domain"
)

// OrderHandlers contains the orchestrator's HTTP handlers.
type OrderHandlers struct {
	runOrderSaga *application.RunOrderSaga
	getOrder     *application.GetOrder
}

// NewOrderHandlers creates new order handlers.
func NewOrderHandlers(runOrderSaga *application.RunOrderSaga, getOrder *application.GetOrder) *OrderHandlers {
	return &OrderHandlers{
		runOrderSaga: runOrderSaga,
		getOrder:     getOrder,
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// CreateOrder handles POST /orders: it runs the full saga synchronously and
// returns the final record. The HTTP status reflects only the call itself:
// a business outcome of Compensated still answers 200 with the record body;
// 4xx/5xx are reserved for malformed input and orchestrator faults.
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// The run is never cancelled mid-flight: a client disconnect must not
	// abort compensation once steps have started.
	ctx := context.WithoutCancel(r.Context())

	record, err := h.runOrderSaga.Execute(ctx, &req)
	if err != nil {
		if domain.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal orchestrator fault")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "Order ID is required")
		return
	}

	record, err := h.getOrder.Execute(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal orchestrator fault")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// Health is the liveness probe.
func (h *OrderHandlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "role": "order"})
}

// RegisterRoutes registers the orchestrator routes.
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/{order_id}", h.GetOrder)
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
