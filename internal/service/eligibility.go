package service

import (
	"context"
	"fmt"
	"log/slog"

	"fleet/internal/dispatch"
	"fleet/internal/domain"
	"fleet/internal/repository"
)

// IsEligible reports whether driver may be offered an order paid with method.
// Cash orders additionally require a balance strictly above the debt limit.
func IsEligible(driver *domain.Driver, method domain.PaymentMethod) bool {
	if driver == nil || driver.OperationalStatus != domain.StatusActive {
		return false
	}
	if !method.IsCash() {
		return true
	}
	return driver.Wallet.CurrentBalance.GreaterThan(driver.Wallet.DebtLimit)
}

// EligibleDrivers returns the dispatch ids of the candidates eligible for an
// order paid with method, preserving candidate order. Drivers without a
// dispatch id cannot be offered anything and are skipped.
func EligibleDrivers(candidates []*domain.Driver, method domain.PaymentMethod) []string {
	ids := make([]string, 0, len(candidates))
	for _, d := range candidates {
		if d == nil || d.ExternalDispatchID == "" {
			continue
		}
		if IsEligible(d, method) {
			ids = append(ids, d.ExternalDispatchID)
		}
	}
	return ids
}

// OrderService mirrors eligibility decisions into the dispatch provider.
type OrderService struct {
	drivers  repository.DriverRepository
	dispatch dispatch.Client
	logger   *slog.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(drivers repository.DriverRepository, client dispatch.Client, logger *slog.Logger) *OrderService {
	return &OrderService{
		drivers:  drivers,
		dispatch: client,
		logger:   logger,
	}
}

// FilterResult reports what was pushed for an order.
type FilterResult struct {
	Filtered        bool
	EligibleDrivers []string
}

// FilterOrder restricts a new cash order to drivers not over their debt limit.
// Non-cash orders are left untouched.
func (s *OrderService) FilterOrder(ctx context.Context, order domain.NewOrder) (*FilterResult, error) {
	if order.ExternalOrderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrInvalidEvent)
	}
	if !order.PaymentMethod.IsCash() {
		return &FilterResult{Filtered: false, EligibleDrivers: []string{}}, nil
	}

	active, err := s.drivers.List(ctx, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	eligible := EligibleDrivers(active, order.PaymentMethod)

	if len(eligible) == 0 {
		s.logger.Warn("no eligible drivers for cash order", "order_id", order.ExternalOrderID, "candidates", len(active))
		return &FilterResult{Filtered: true, EligibleDrivers: eligible}, nil
	}

	if err := s.dispatch.SetOrderTargets(ctx, order.ExternalOrderID, eligible, "payment method: "+string(order.PaymentMethod)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalDependency, err)
	}

	s.logger.Info("cash order targets pushed", "order_id", order.ExternalOrderID, "eligible", len(eligible), "candidates", len(active))
	return &FilterResult{Filtered: true, EligibleDrivers: eligible}, nil
}

// UnassignOrder removes the current driver from an order at the provider.
func (s *OrderService) UnassignOrder(ctx context.Context, actor domain.Principal, orderID string) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if orderID == "" {
		return ErrInvalidOrderID
	}
	if err := s.dispatch.UnassignOrder(ctx, orderID); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalDependency, err)
	}
	s.logger.Info("order unassigned", "order_id", orderID, "actor", actor.Subject)
	return nil
}
