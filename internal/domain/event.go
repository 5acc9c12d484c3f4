package domain

import "github.com/shopspring/decimal"

// PaymentMethod is how the customer paid for an order.
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodOther PaymentMethod = "OTHER"
)

// IsCash reports whether the driver collected cash for the order.
func (m PaymentMethod) IsCash() bool {
	return m == PaymentMethodCash
}

// EventTypeOrderDelivered is the only dispatch event that triggers settlement.
const EventTypeOrderDelivered = "order_delivered"

// DeliveryCompleted is a validated "order delivered" event from the dispatch provider.
type DeliveryCompleted struct {
	ExternalOrderID          string
	ExternalDispatchDriverID string
	PaymentMethod            PaymentMethod
	DeliveryFee              decimal.Decimal
	Tip                      decimal.Decimal
}

// NewOrder is a validated "new order" event used for eligibility filtering.
type NewOrder struct {
	ExternalOrderID string
	PaymentMethod   PaymentMethod
}
