package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fleet/internal/domain"
	"fleet/internal/metrics"
	"fleet/internal/repository"
)

// SettlementService books completed deliveries into driver wallets.
type SettlementService struct {
	ledger   repository.LedgerStore
	settings *SettingsService
	notifier *NotificationService
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(
	ledger repository.LedgerStore,
	settings *SettingsService,
	notifier *NotificationService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		ledger:   ledger,
		settings: settings,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// SettlementPostings computes the ledger entries for one delivery.
//
// A cash order debits the flat base commission because the driver already holds
// the customer's cash. Any other order credits the delivery fee. A positive tip
// and an active rain fee are credited as entries of their own.
func SettlementPostings(evt domain.DeliveryCompleted, settings domain.OperationalSettings) []repository.Posting {
	orderID := evt.ExternalOrderID
	postings := make([]repository.Posting, 0, 3)

	if evt.PaymentMethod.IsCash() {
		postings = append(postings, repository.Posting{
			Kind:            domain.KindDebitCommission,
			Amount:          settings.BaseCommission.Neg(),
			ExternalOrderID: orderID,
			Description:     "commission (cash) #" + orderID,
		})
	} else {
		postings = append(postings, repository.Posting{
			Kind:            domain.KindCreditDelivery,
			Amount:          evt.DeliveryFee,
			ExternalOrderID: orderID,
			Description:     "delivery earning #" + orderID,
		})
	}

	if evt.Tip.IsPositive() {
		postings = append(postings, repository.Posting{
			Kind:            domain.KindCreditTip,
			Amount:          evt.Tip,
			ExternalOrderID: orderID,
			Description:     "tip: +" + formatAmount(evt.Tip),
		})
	}

	if fee := settings.ActiveRainFee(); fee.IsPositive() {
		postings = append(postings, repository.Posting{
			Kind:            domain.KindCreditRainFee,
			Amount:          fee,
			ExternalOrderID: orderID,
			Description:     "rain fee: +" + formatAmount(fee),
		})
	}

	return postings
}

// Settle applies a delivered order to the driver's wallet in one atomic transaction.
// A replayed order returns ErrAlreadySettled without touching the ledger.
func (s *SettlementService) Settle(ctx context.Context, evt domain.DeliveryCompleted) (*LedgerResult, error) {
	if err := validateDelivery(evt); err != nil {
		s.metrics.Settlement("invalid")
		return nil, err
	}

	settings, err := s.settings.Current(ctx)
	if err != nil {
		s.metrics.Settlement("error")
		return nil, fmt.Errorf("load settings: %w", err)
	}

	driver, err := s.ledger.FindDriverByExternalDispatchID(ctx, evt.ExternalDispatchDriverID)
	if err != nil {
		err = mapStoreError(err)
		s.metrics.Settlement(outcomeOf(err))
		return nil, err
	}

	postings := SettlementPostings(evt, settings)

	var result *LedgerResult
	err = s.ledger.WithDriverTransaction(ctx, driver.Key, func(tx repository.DriverTx) error {
		if !domain.CanSettle(tx.Driver().OperationalStatus) {
			return ErrDriverNotSettleable
		}
		settled, err := tx.HasOrder(ctx, evt.ExternalOrderID, domain.SettlementKinds...)
		if err != nil {
			return err
		}
		if settled {
			return ErrAlreadySettled
		}
		result = postAndEvaluate(tx, postings)
		return nil
	})
	if err != nil {
		err = mapStoreError(err)
		outcome := outcomeOf(err)
		s.metrics.Settlement(outcome)
		if outcome == "duplicate" {
			s.logger.Info("delivery already settled", "driver_key", driver.Key, "order_id", evt.ExternalOrderID)
		} else {
			s.logger.Error("settlement failed", "driver_key", driver.Key, "order_id", evt.ExternalOrderID, "error", err)
		}
		return nil, err
	}

	s.metrics.Settlement("settled")
	recordCommitted(s.metrics, result)
	s.logger.Info("delivery settled",
		"driver_key", driver.Key,
		"order_id", evt.ExternalOrderID,
		"payment_method", evt.PaymentMethod,
		"delta", formatAmount(result.Delta()),
		"balance", formatAmount(result.Driver.Wallet.CurrentBalance),
		"status", result.Driver.OperationalStatus,
	)
	s.notifier.NotifyLedgerChange(ctx, EventWalletSettled, result)

	return result, nil
}

func validateDelivery(evt domain.DeliveryCompleted) error {
	switch {
	case evt.ExternalOrderID == "":
		return fmt.Errorf("%w: externalOrderId is required", ErrInvalidEvent)
	case evt.ExternalDispatchDriverID == "":
		return fmt.Errorf("%w: externalDispatchDriverId is required", ErrInvalidEvent)
	case evt.PaymentMethod == "":
		return fmt.Errorf("%w: paymentMethod is required", ErrInvalidEvent)
	case evt.DeliveryFee.IsNegative():
		return fmt.Errorf("%w: deliveryFee must not be negative", ErrInvalidEvent)
	case evt.Tip.IsNegative():
		return fmt.Errorf("%w: tip must not be negative", ErrInvalidEvent)
	case !domain.IsCents(evt.DeliveryFee) || !domain.IsCents(evt.Tip):
		return fmt.Errorf("%w: amounts must have at most two decimal places", ErrInvalidEvent)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrAlreadySettled):
		return "duplicate"
	case errors.Is(err, ErrDriverNotFound):
		return "driver_not_found"
	case errors.Is(err, ErrDriverNotSettleable):
		return "not_settleable"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	}
	return "error"
}
