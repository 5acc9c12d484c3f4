package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fleet/internal/domain"
	"fleet/internal/service"
)

// WebhookHandler receives events from the dispatch provider. The provider only
// understands status codes, so every outcome is reported through one.
type WebhookHandler struct {
	settlementService *service.SettlementService
	orderService      *service.OrderService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(settlementService *service.SettlementService, orderService *service.OrderService) *WebhookHandler {
	return &WebhookHandler{
		settlementService: settlementService,
		orderService:      orderService,
	}
}

// dispatchID accepts the provider's driver id as either a JSON string or number.
type dispatchID string

func (id *dispatchID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = dispatchID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("driver id must be a string or a number")
	}
	*id = dispatchID(n.String())
	return nil
}

// DeliveryWebhookRequest is the inbound delivery event. Pointer fields are
// required: a missing amount is rejected rather than read as zero.
type DeliveryWebhookRequest struct {
	EventType                string     `json:"eventType"`
	ExternalOrderID          string     `json:"externalOrderId"`
	ExternalDispatchDriverID dispatchID `json:"externalDispatchDriverId"`
	Order                    *struct {
		PaymentMethod string           `json:"paymentMethod"`
		DeliveryFee   *decimal.Decimal `json:"deliveryFee"`
		Tip           *decimal.Decimal `json:"tip"`
	} `json:"order"`
}

// WebhookResponse is returned for every accepted webhook call.
type WebhookResponse struct {
	Status  string          `json:"status"`
	Ledger  *LedgerResponse `json:"ledger,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Delivery handles POST /v1/webhooks/dispatch
// The event type is read first so that events this service does not handle are
// acknowledged whatever the rest of their payload looks like.
func (h *WebhookHandler) Delivery(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var envelope struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if envelope.EventType != domain.EventTypeOrderDelivered {
		respondJSON(c, http.StatusOK, WebhookResponse{Status: "ignored", Message: "event type not handled"})
		return
	}

	var req DeliveryWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	evt, msg := req.toEvent()
	if msg != "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
		return
	}

	result, err := h.settlementService.Settle(c.Request.Context(), evt)
	switch {
	case errors.Is(err, service.ErrAlreadySettled):
		respondJSON(c, http.StatusOK, WebhookResponse{Status: "duplicate", Message: "order already settled"})
		return
	case errors.Is(err, service.ErrDriverNotSettleable):
		// Redelivery cannot change the outcome, so the provider gets a no-op.
		_ = c.Error(err)
		respondJSON(c, http.StatusOK, WebhookResponse{Status: "not_settleable", Message: service.ErrDriverNotSettleable.Error()})
		return
	case err != nil:
		respondError(c, err)
		return
	}

	ledger := toLedgerResponse(result)
	respondJSON(c, http.StatusOK, WebhookResponse{Status: "settled", Ledger: &ledger})
}

func (r DeliveryWebhookRequest) toEvent() (domain.DeliveryCompleted, string) {
	switch {
	case strings.TrimSpace(r.ExternalOrderID) == "":
		return domain.DeliveryCompleted{}, "externalOrderId is required"
	case r.ExternalDispatchDriverID == "":
		return domain.DeliveryCompleted{}, "externalDispatchDriverId is required"
	case r.Order == nil:
		return domain.DeliveryCompleted{}, "order is required"
	case strings.TrimSpace(r.Order.PaymentMethod) == "":
		return domain.DeliveryCompleted{}, "order.paymentMethod is required"
	case r.Order.DeliveryFee == nil:
		return domain.DeliveryCompleted{}, "order.deliveryFee is required"
	case r.Order.Tip == nil:
		return domain.DeliveryCompleted{}, "order.tip is required"
	case r.Order.DeliveryFee.IsNegative() || r.Order.Tip.IsNegative():
		return domain.DeliveryCompleted{}, "order amounts must not be negative"
	case !domain.IsCents(*r.Order.DeliveryFee) || !domain.IsCents(*r.Order.Tip):
		return domain.DeliveryCompleted{}, "order amounts must have at most two decimal places"
	}

	return domain.DeliveryCompleted{
		ExternalOrderID:          strings.TrimSpace(r.ExternalOrderID),
		ExternalDispatchDriverID: string(r.ExternalDispatchDriverID),
		PaymentMethod:            parsePaymentMethod(r.Order.PaymentMethod),
		DeliveryFee:              *r.Order.DeliveryFee,
		Tip:                      *r.Order.Tip,
	}, ""
}

func parsePaymentMethod(raw string) domain.PaymentMethod {
	if strings.EqualFold(strings.TrimSpace(raw), string(domain.PaymentMethodCash)) {
		return domain.PaymentMethodCash
	}
	return domain.PaymentMethodOther
}

// NewOrderWebhookRequest is the inbound new-order event.
type NewOrderWebhookRequest struct {
	Order *struct {
		OrderID       dispatchID `json:"orderId"`
		PaymentMethod string     `json:"paymentMethod"`
	} `json:"order"`
}

// OrderFilterResponse reports which drivers an order was restricted to.
type OrderFilterResponse struct {
	Status          string   `json:"status"`
	EligibleDrivers []string `json:"eligibleDrivers"`
}

// NewOrder handles POST /v1/webhooks/dispatch/orders
func (h *WebhookHandler) NewOrder(c *gin.Context) {
	var req NewOrderWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Order == nil || req.Order.OrderID == "" || strings.TrimSpace(req.Order.PaymentMethod) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "order.orderId and order.paymentMethod are required"})
		return
	}

	result, err := h.orderService.FilterOrder(c.Request.Context(), domain.NewOrder{
		ExternalOrderID: string(req.Order.OrderID),
		PaymentMethod:   parsePaymentMethod(req.Order.PaymentMethod),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := "not_filtered"
	if result.Filtered {
		status = "filtered"
	}
	respondJSON(c, http.StatusOK, OrderFilterResponse{Status: status, EligibleDrivers: result.EligibleDrivers})
}
