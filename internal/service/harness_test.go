package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/logging"
	"fleet/internal/metrics"
	"fleet/internal/repository"
	"fleet/internal/repository/memory"
	"fleet/internal/service"
	"fleet/internal/tests"
)

var (
	admin      = domain.Principal{Subject: "admin-1", Role: domain.RoleAdmin}
	superadmin = domain.Principal{Subject: "root-1", Role: domain.RoleSuperAdmin}
)

type harness struct {
	store     *memory.Store
	dispatch  *tests.MockDispatchClient
	locks     *tests.MockLockStore
	cache     *tests.MockSettingsCache
	publisher *tests.MockPublisher
	registry  *prometheus.Registry

	settings    *service.SettingsService
	settlement  *service.SettlementService
	wallet      *service.WalletService
	application *service.ApplicationService
	orders      *service.OrderService
	drivers     *service.DriverService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:     memory.New(),
		dispatch:  tests.NewMockDispatchClient(),
		locks:     tests.NewMockLockStore(),
		cache:     tests.NewMockSettingsCache(),
		publisher: tests.NewMockPublisher(),
		registry:  prometheus.NewRegistry(),
	}

	logger := logging.Discard()
	m := metrics.New(h.registry)
	notifier := service.NewNotificationService(h.publisher, logger)

	h.settings = service.NewSettingsService(h.store, h.cache, domain.DefaultBaseCommission, logger)
	h.settlement = service.NewSettlementService(h.store, h.settings, notifier, m, logger)
	h.wallet = service.NewWalletService(h.store, h.store, h.settings, notifier, m, logger)
	h.orders = service.NewOrderService(h.store, h.dispatch, logger)
	h.drivers = service.NewDriverService(h.store)
	h.application = service.NewApplicationService(h.store, h.store, h.dispatch, h.locks, notifier, m, logger,
		service.ApplicationConfig{DefaultDebtLimit: domain.DefaultDebtLimit, ApprovalLockTTL: time.Minute})

	return h
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// addDriver stores a driver directly, bypassing onboarding.
func (h *harness) addDriver(t *testing.T, email, dispatchID string, status domain.OperationalStatus) *domain.Driver {
	t.Helper()
	driver := domain.NewDriver(email, "Driver "+email, "+520000000000", "", domain.DefaultDebtLimit, time.Now())
	driver.OperationalStatus = status
	driver.ExternalDispatchID = dispatchID
	require.NoError(t, h.store.Create(context.Background(), driver))
	return driver
}

// setBalance moves the wallet to target through an adjustment so the ledger stays paired.
func (h *harness) setBalance(t *testing.T, key string, target decimal.Decimal) {
	t.Helper()
	err := h.store.WithDriverTransaction(context.Background(), key, func(tx repository.DriverTx) error {
		delta := target.Sub(tx.Driver().Wallet.CurrentBalance)
		if !delta.IsZero() {
			tx.Post(repository.Posting{Kind: domain.KindAdjustment, Amount: delta, Description: "seed"})
		}
		return nil
	})
	require.NoError(t, err)
}

func (h *harness) setSettings(t *testing.T, patch domain.SettingsPatch) {
	t.Helper()
	_, err := h.settings.Update(context.Background(), admin, patch)
	require.NoError(t, err)
}

func (h *harness) driver(t *testing.T, key string) *domain.Driver {
	t.Helper()
	d, err := h.store.GetByKey(context.Background(), key)
	require.NoError(t, err)
	return d
}

func (h *harness) requirePaired(t *testing.T, key string) {
	t.Helper()
	txns, err := h.store.ListTransactions(context.Background(), key, 0)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, txn := range txns {
		sum = sum.Add(txn.Amount)
	}
	balance := h.driver(t, key).Wallet.CurrentBalance
	require.Truef(t, balance.Equal(sum), "balance %s does not match ledger sum %s", balance, sum)
}

func delivery(orderID, dispatchID string, method domain.PaymentMethod, fee, tip string) domain.DeliveryCompleted {
	return domain.DeliveryCompleted{
		ExternalOrderID:          orderID,
		ExternalDispatchDriverID: dispatchID,
		PaymentMethod:            method,
		DeliveryFee:              dec(fee),
		Tip:                      dec(tip),
	}
}
