package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/relaymart/order-system/participant-service/domain"
	"github.com/relaymart/order-system/participant-service/infrastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInventoryRouter() chi.Router {
	participant := domain.NewInventoryParticipant(infrastructure.NewMemoryReservationStore())
	router := chi.NewRouter()
	NewParticipantHandlers(participant).RegisterRoutes(router)
	return router
}

func postJSON(t *testing.T, router chi.Router, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReserveEndpoint_Success(t *testing.T) {
	router := newInventoryRouter()

	rec := postJSON(t, router, "/inventory/reserve", map[string]interface{}{
		"order_id": "demo-1",
		"sku":      "SKU-1",
		"quantity": 1,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "reserved", body["status"])
	assert.Equal(t, "demo-1", body["order_id"])
}

func TestReserveEndpoint_ForcedFailure(t *testing.T) {
	router := newInventoryRouter()

	rec := postJSON(t, router, "/inventory/reserve", map[string]interface{}{
		"order_id":   "demo-1",
		"sku":        "SKU-1",
		"quantity":   1,
		"force_fail": true,
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ReasonStockRejected, body["detail"])
}

func TestReserveEndpoint_MissingQuantity(t *testing.T) {
	router := newInventoryRouter()

	rec := postJSON(t, router, "/inventory/reserve", map[string]interface{}{
		"order_id": "demo-1",
		"sku":      "SKU-1",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ReasonQuantityRequired, body["detail"])
}

func TestCancelEndpoint_IdempotentOverHTTP(t *testing.T) {
	router := newInventoryRouter()

	for i := 0; i < 2; i++ {
		rec := postJSON(t, router, "/inventory/cancel", map[string]interface{}{
			"order_id": "demo-1",
		})
		require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "cancelled", body["status"])
	}
}

func TestHealthEndpoint_ReportsRole(t *testing.T) {
	router := newInventoryRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "inventory", body["role"])
}
