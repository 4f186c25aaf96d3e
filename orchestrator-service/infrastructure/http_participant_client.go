package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/relaymart/order-system/orchestrator-service/domain"
	"github.com/relaymart/order-system/shared/saga"
)

// DefaultParticipantTimeout bounds every outbound participant call.
const DefaultParticipantTimeout = 5 * time.Second

type reservePayload struct {
	OrderID   string  `json:"order_id"`
	Amount    float64 `json:"amount,omitempty"`
	SKU       string  `json:"sku,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Slot      string  `json:"slot,omitempty"`
	ForceFail bool    `json:"force_fail,omitempty"`
}

type cancelPayload struct {
	OrderID string `json:"order_id"`
}

type participantError struct {
	Detail string `json:"detail"`
}

// HTTPParticipantClient calls one participant's reserve/cancel pair over
// HTTP. Every transport condition (timeout, refused connection, non-success
// status, malformed body) is mapped to a failed StepOutcome; the orchestrator
// never sees a raw transport error.
type HTTPParticipantClient struct {
	role    saga.StepName
	baseURL string
	client  *http.Client
	payload func(req *domain.OrderRequest) reservePayload
}

// NewPaymentClient creates the client for the payment participant.
func NewPaymentClient(baseURL string, timeout time.Duration) *HTTPParticipantClient {
	return newParticipantClient(saga.StepPayment, baseURL, timeout, func(req *domain.OrderRequest) reservePayload {
		return reservePayload{
			OrderID:   req.OrderID,
			Amount:    req.Amount,
			ForceFail: req.ForcePaymentFailure,
		}
	})
}

// NewInventoryClient creates the client for the inventory participant.
func NewInventoryClient(baseURL string, timeout time.Duration) *HTTPParticipantClient {
	return newParticipantClient(saga.StepInventory, baseURL, timeout, func(req *domain.OrderRequest) reservePayload {
		return reservePayload{
			OrderID:   req.OrderID,
			SKU:       req.SKU,
			Quantity:  req.Quantity,
			ForceFail: req.ForceInventoryFailure,
		}
	})
}

// NewDeliveryClient creates the client for the delivery participant.
func NewDeliveryClient(baseURL string, timeout time.Duration) *HTTPParticipantClient {
	return newParticipantClient(saga.StepDelivery, baseURL, timeout, func(req *domain.OrderRequest) reservePayload {
		return reservePayload{
			OrderID:   req.OrderID,
			Slot:      req.Slot,
			ForceFail: req.ForceDeliveryFailure,
		}
	})
}

func newParticipantClient(role saga.StepName, baseURL string, timeout time.Duration, payload func(*domain.OrderRequest) reservePayload) *HTTPParticipantClient {
	if timeout <= 0 {
		timeout = DefaultParticipantTimeout
	}
	return &HTTPParticipantClient{
		role:    role,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		payload: payload,
	}
}

func (c *HTTPParticipantClient) Role() saga.StepName {
	return c.role
}

// Reserve invokes the participant's forward action.
func (c *HTTPParticipantClient) Reserve(ctx context.Context, req *domain.OrderRequest) saga.StepOutcome {
	return c.post(ctx, "reserve", c.payload(req))
}

// Cancel invokes the participant's compensation for a prior reserve.
func (c *HTTPParticipantClient) Cancel(ctx context.Context, orderID string) saga.StepOutcome {
	return c.post(ctx, "cancel", cancelPayload{OrderID: orderID})
}

func (c *HTTPParticipantClient) post(ctx context.Context, action string, payload interface{}) saga.StepOutcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return saga.Fail(fmt.Sprintf("transport: %v", err))
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.role, action)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return saga.Fail(fmt.Sprintf("transport: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return classifyTransportError(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return classifyFailureResponse(res)
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return saga.Fail("transport: malformed response body")
	}
	return saga.Succeed()
}

func classifyTransportError(err error) saga.StepOutcome {
	if isTimeout(err) {
		return saga.Fail("timeout")
	}
	return saga.Fail(fmt.Sprintf("transport: %v", err))
}

// classifyFailureResponse prefers the participant's own failure reason (the
// JSON detail field) over a generic status-code description, so that forced
// business failures surface verbatim in the saga step log.
func classifyFailureResponse(res *http.Response) saga.StepOutcome {
	contentType := res.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var pErr participantError
		if err := json.NewDecoder(res.Body).Decode(&pErr); err == nil && pErr.Detail != "" {
			return saga.Fail(pErr.Detail)
		}
	}
	return saga.Fail(fmt.Sprintf("transport: unexpected status %d", res.StatusCode))
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	for err != nil {
		if t, ok := err.(timeouter); ok && t.Timeout() {
			return true
		}
		if ctxErr, ok := err.(interface{ Unwrap() error }); ok {
			err = ctxErr.Unwrap()
			continue
		}
		return false
	}
	return false
}
