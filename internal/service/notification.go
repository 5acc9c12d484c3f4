package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fleet/internal/domain"
	"fleet/internal/mq"
)

// EventType names a published ledger event. It doubles as the routing key.
type EventType string

const (
	EventWalletSettled       EventType = "wallet.settled"
	EventWalletPayout        EventType = "wallet.payout"
	EventWalletAdjusted      EventType = "wallet.adjusted"
	EventDriverStatusChanged EventType = "driver.status_changed"
)

// Event is the JSON body published for every committed wallet or status change.
type Event struct {
	ID             string             `json:"id"`
	Type           EventType          `json:"type"`
	DriverKey      string             `json:"driverKey"`
	Status         string             `json:"status"`
	PreviousStatus string             `json:"previousStatus,omitempty"`
	Balance        string             `json:"balance"`
	Transactions   []EventTransaction `json:"transactions,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// EventTransaction is a ledger entry as carried in an Event.
type EventTransaction struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Amount          string `json:"amount"`
	ExternalOrderID string `json:"externalOrderId,omitempty"`
	Description     string `json:"description"`
}

// NotificationService publishes ledger events after commit.
// Publishing is best effort: the ledger is the source of truth.
type NotificationService struct {
	publisher mq.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(publisher mq.Publisher, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// NotifyLedgerChange publishes the wallet event for result and, when the
// operational status moved, a separate status event.
func (s *NotificationService) NotifyLedgerChange(ctx context.Context, typ EventType, result *LedgerResult) {
	if s == nil || result == nil {
		return
	}

	evt := s.event(typ, result.Driver, result.PreviousStatus)
	for _, t := range result.Transactions {
		evt.Transactions = append(evt.Transactions, EventTransaction{
			ID:              t.ID,
			Kind:            string(t.Kind),
			Amount:          t.Amount.StringFixed(2),
			ExternalOrderID: t.ExternalOrderID,
			Description:     t.Description,
		})
	}
	s.publish(ctx, evt)

	if result.StatusChanged() {
		s.NotifyStatusChanged(ctx, result.Driver, result.PreviousStatus)
	}
}

// NotifyStatusChanged publishes a driver.status_changed event.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, driver domain.Driver, previous domain.OperationalStatus) {
	if s == nil {
		return
	}
	s.publish(ctx, s.event(EventDriverStatusChanged, driver, previous))
}

func (s *NotificationService) event(typ EventType, driver domain.Driver, previous domain.OperationalStatus) Event {
	evt := Event{
		ID:         uuid.New().String(),
		Type:       typ,
		DriverKey:  driver.Key,
		Status:     string(driver.OperationalStatus),
		Balance:    driver.Wallet.CurrentBalance.StringFixed(2),
		OccurredAt: s.now().UTC(),
	}
	if previous != driver.OperationalStatus {
		evt.PreviousStatus = string(previous)
	}
	return evt
}

func (s *NotificationService) publish(ctx context.Context, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("failed to encode event", "type", evt.Type, "driver_key", evt.DriverKey, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, string(evt.Type), body); err != nil {
		s.logger.Warn("failed to publish event", "type", evt.Type, "driver_key", evt.DriverKey, "error", err)
	}
}
