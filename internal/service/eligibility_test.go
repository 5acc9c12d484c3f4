package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/service"
)

func TestIsEligible(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.OperationalStatus
		balance string
		method  domain.PaymentMethod
		want    bool
	}{
		{"cash at limit", domain.StatusActive, "-500", domain.PaymentMethodCash, false},
		{"cash one cent above limit", domain.StatusActive, "-499.99", domain.PaymentMethodCash, true},
		{"cash positive balance", domain.StatusActive, "120", domain.PaymentMethodCash, true},
		{"non-cash at limit", domain.StatusActive, "-500", domain.PaymentMethodOther, true},
		{"non-cash below limit", domain.StatusActive, "-900", domain.PaymentMethodOther, true},
		{"restricted driver", domain.StatusRestrictedDebt, "0", domain.PaymentMethodOther, false},
		{"suspended driver", domain.StatusSuspended, "100", domain.PaymentMethodCash, false},
		{"pending driver", domain.StatusPendingValidation, "0", domain.PaymentMethodOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &domain.Driver{
				OperationalStatus: tt.status,
				Wallet:            domain.Wallet{CurrentBalance: dec(tt.balance), DebtLimit: dec("-500")},
			}
			assert.Equal(t, tt.want, service.IsEligible(driver, tt.method))
		})
	}

	assert.False(t, service.IsEligible(nil, domain.PaymentMethodOther))
}

func TestEligibleDrivers_SkipsDriversWithoutDispatchID(t *testing.T) {
	wallet := domain.Wallet{CurrentBalance: dec("0"), DebtLimit: dec("-500")}
	candidates := []*domain.Driver{
		{Key: "a", ExternalDispatchID: "1", OperationalStatus: domain.StatusActive, Wallet: wallet},
		{Key: "b", OperationalStatus: domain.StatusActive, Wallet: wallet},
		{Key: "c", ExternalDispatchID: "3", OperationalStatus: domain.StatusActive,
			Wallet: domain.Wallet{CurrentBalance: dec("-500"), DebtLimit: dec("-500")}},
		{Key: "d", ExternalDispatchID: "4", OperationalStatus: domain.StatusActive, Wallet: wallet},
	}

	assert.Equal(t, []string{"1", "4"}, service.EligibleDrivers(candidates, domain.PaymentMethodCash))
	assert.Equal(t, []string{"1", "3", "4"}, service.EligibleDrivers(candidates, domain.PaymentMethodOther))
	assert.Empty(t, service.EligibleDrivers(nil, domain.PaymentMethodCash))
}

func TestFilterOrder_PushesEligibleCashTargets(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ok@example.com", "201", domain.StatusActive)
	h.addDriver(t, "debt@example.com", "202", domain.StatusActive)
	h.addDriver(t, "restricted@example.com", "203", domain.StatusRestrictedDebt)
	h.setBalance(t, "debt@example.com", dec("-500"))

	result, err := h.orders.FilterOrder(context.Background(), domain.NewOrder{ExternalOrderID: "N-1", PaymentMethod: domain.PaymentMethodCash})
	require.NoError(t, err)

	assert.True(t, result.Filtered)
	assert.Equal(t, []string{"201"}, result.EligibleDrivers)

	targets, ok := h.dispatch.Targets("N-1")
	require.True(t, ok)
	assert.Equal(t, []string{"201"}, targets)
}

func TestFilterOrder_NonCashIsNotFiltered(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ok@example.com", "201", domain.StatusActive)

	result, err := h.orders.FilterOrder(context.Background(), domain.NewOrder{ExternalOrderID: "N-2", PaymentMethod: domain.PaymentMethodOther})
	require.NoError(t, err)

	assert.False(t, result.Filtered)
	assert.Zero(t, h.dispatch.SetTargetsCallCount)
}

func TestFilterOrder_NoEligibleDriverSkipsProvider(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "debt@example.com", "202", domain.StatusActive)
	h.setBalance(t, "debt@example.com", dec("-650"))

	result, err := h.orders.FilterOrder(context.Background(), domain.NewOrder{ExternalOrderID: "N-3", PaymentMethod: domain.PaymentMethodCash})
	require.NoError(t, err)

	assert.True(t, result.Filtered)
	assert.Empty(t, result.EligibleDrivers)
	assert.Zero(t, h.dispatch.SetTargetsCallCount)
}

func TestFilterOrder_ProviderFailure(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ok@example.com", "201", domain.StatusActive)
	h.dispatch.SetTargetsError = errors.New("connection refused")

	_, err := h.orders.FilterOrder(context.Background(), domain.NewOrder{ExternalOrderID: "N-4", PaymentMethod: domain.PaymentMethodCash})
	assert.ErrorIs(t, err, service.ErrExternalDependency)

	_, err = h.orders.FilterOrder(context.Background(), domain.NewOrder{PaymentMethod: domain.PaymentMethodCash})
	assert.ErrorIs(t, err, service.ErrInvalidEvent)
}

func TestUnassignOrder(t *testing.T) {
	h := newHarness(t)
	driver := domain.Principal{Subject: "ok@example.com", Role: domain.RoleDriver}

	assert.ErrorIs(t, h.orders.UnassignOrder(context.Background(), driver, "O-1"), service.ErrPermissionDenied)
	assert.ErrorIs(t, h.orders.UnassignOrder(context.Background(), admin, ""), service.ErrInvalidOrderID)

	require.NoError(t, h.orders.UnassignOrder(context.Background(), admin, "O-1"))
	assert.Equal(t, []string{"O-1"}, h.dispatch.Unassigned())

	h.dispatch.UnassignError = errors.New("503")
	assert.ErrorIs(t, h.orders.UnassignOrder(context.Background(), admin, "O-2"), service.ErrExternalDependency)
}
