package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"fleet/internal/domain"
	"fleet/internal/metrics"
	"fleet/internal/repository"
)

// recentTransactionsLimit is how many entries the driver wallet view returns.
const recentTransactionsLimit = 20

// WalletService handles admin wallet operations and the driver's wallet view.
type WalletService struct {
	ledger   repository.LedgerStore
	drivers  repository.DriverRepository
	settings *SettingsService
	notifier *NotificationService
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewWalletService creates a new WalletService.
func NewWalletService(
	ledger repository.LedgerStore,
	drivers repository.DriverRepository,
	settings *SettingsService,
	notifier *NotificationService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		ledger:   ledger,
		drivers:  drivers,
		settings: settings,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// PayoutRequest contains the parameters for a manual payout.
type PayoutRequest struct {
	DriverKey string
	Amount    decimal.Decimal
	Notes     string
}

// RecordPayout debits amount from the driver's wallet.
func (s *WalletService) RecordPayout(ctx context.Context, actor domain.Principal, req PayoutRequest) (*LedgerResult, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	key := domain.NormalizeKey(req.DriverKey)
	if key == "" {
		return nil, ErrInvalidDriverKey
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payout amount must be positive", ErrInvalidAmount)
	}
	if !domain.IsCents(req.Amount) {
		return nil, fmt.Errorf("%w: payout amount has more than two decimal places", ErrInvalidAmount)
	}

	result, err := s.post(ctx, key, repository.Posting{
		Kind:        domain.KindPayout,
		Amount:      req.Amount.Neg(),
		Description: withNotes("payout", req.Notes),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Payout()
	s.logger.Info("payout recorded",
		"driver_key", key,
		"actor", actor.Subject,
		"amount", formatAmount(req.Amount),
		"balance", formatAmount(result.Driver.Wallet.CurrentBalance),
	)
	s.notifier.NotifyLedgerChange(ctx, EventWalletPayout, result)
	return result, nil
}

// AdjustmentRequest contains the parameters for a manual correction.
// Amount is signed and must not be zero.
type AdjustmentRequest struct {
	DriverKey string
	Amount    decimal.Decimal
	Notes     string
}

// RecordAdjustment applies a signed correction to the driver's wallet.
func (s *WalletService) RecordAdjustment(ctx context.Context, actor domain.Principal, req AdjustmentRequest) (*LedgerResult, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	key := domain.NormalizeKey(req.DriverKey)
	if key == "" {
		return nil, ErrInvalidDriverKey
	}
	if req.Amount.IsZero() {
		return nil, fmt.Errorf("%w: adjustment amount must not be zero", ErrInvalidAmount)
	}
	if !domain.IsCents(req.Amount) {
		return nil, fmt.Errorf("%w: adjustment amount has more than two decimal places", ErrInvalidAmount)
	}

	result, err := s.post(ctx, key, repository.Posting{
		Kind:        domain.KindAdjustment,
		Amount:      req.Amount,
		Description: withNotes("adjustment", req.Notes),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("adjustment recorded",
		"driver_key", key,
		"actor", actor.Subject,
		"amount", formatAmount(req.Amount),
	)
	s.notifier.NotifyLedgerChange(ctx, EventWalletAdjusted, result)
	return result, nil
}

// IncentiveRequest grants a configured incentive, optionally tied to an order.
type IncentiveRequest struct {
	DriverKey       string
	IncentiveID     string
	ExternalOrderID string
}

// GrantIncentive credits an active incentive from the operational settings.
// When tied to an order, the same incentive cannot be credited twice for it.
func (s *WalletService) GrantIncentive(ctx context.Context, actor domain.Principal, req IncentiveRequest) (*LedgerResult, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	key := domain.NormalizeKey(req.DriverKey)
	if key == "" {
		return nil, ErrInvalidDriverKey
	}

	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	inc, ok := settings.Incentive(req.IncentiveID)
	if !ok || !inc.Active || !inc.Amount.IsPositive() {
		return nil, ErrIncentiveNotFound
	}

	result, err := s.post(ctx, key, repository.Posting{
		Kind:            domain.KindCreditIncentive,
		Amount:          inc.Amount,
		ExternalOrderID: req.ExternalOrderID,
		Description:     fmt.Sprintf("incentive %s: +%s", inc.Description, formatAmount(inc.Amount)),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("incentive granted",
		"driver_key", key,
		"actor", actor.Subject,
		"incentive_id", inc.ID,
		"order_id", req.ExternalOrderID,
	)
	s.notifier.NotifyLedgerChange(ctx, EventWalletAdjusted, result)
	return result, nil
}

func (s *WalletService) post(ctx context.Context, key string, p repository.Posting) (*LedgerResult, error) {
	var result *LedgerResult
	err := s.ledger.WithDriverTransaction(ctx, key, func(tx repository.DriverTx) error {
		result = postAndEvaluate(tx, []repository.Posting{p})
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	recordCommitted(s.metrics, result)
	return result, nil
}

// WalletView is what a driver sees about their own wallet.
type WalletView struct {
	Driver       *domain.Driver
	CashEligible bool
	Transactions []*domain.Transaction
}

// GetWallet returns the caller's wallet and most recent transactions.
func (s *WalletService) GetWallet(ctx context.Context, actor domain.Principal) (*WalletView, error) {
	key := domain.NormalizeKey(actor.Subject)
	if err := RequireDriverSelf(actor, key); err != nil {
		return nil, err
	}

	driver, err := s.drivers.GetByKey(ctx, key)
	if err != nil {
		return nil, mapStoreError(err)
	}
	txns, err := s.drivers.ListTransactions(ctx, key, recentTransactionsLimit)
	if err != nil {
		return nil, err
	}

	return &WalletView{
		Driver:       driver,
		CashEligible: IsEligible(driver, domain.PaymentMethodCash),
		Transactions: txns,
	}, nil
}

func withNotes(label, notes string) string {
	if notes = strings.TrimSpace(notes); notes != "" {
		return label + ": " + notes
	}
	return label
}
