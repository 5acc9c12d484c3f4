package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/service"
)

func TestSettle_CashOrderWithTipAndRainFee(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ana@example.com", "101", domain.StatusActive)

	commission := dec("15")
	h.setSettings(t, domain.SettingsPatch{
		BaseCommission: &commission,
		RainFee:        &domain.RainFee{Active: true, Amount: dec("10")},
	})

	result, err := h.settlement.Settle(context.Background(), delivery("A-1", "101", domain.PaymentMethodCash, "100", "20"))
	require.NoError(t, err)

	require.Len(t, result.Transactions, 3)
	assert.True(t, result.Delta().Equal(dec("15")))

	commissionTxn, tipTxn, rainTxn := result.Transactions[0], result.Transactions[1], result.Transactions[2]
	assert.Equal(t, domain.KindDebitCommission, commissionTxn.Kind)
	assert.True(t, commissionTxn.Amount.Equal(dec("-15")))
	assert.Equal(t, "commission (cash) #A-1", commissionTxn.Description)

	assert.Equal(t, domain.KindCreditTip, tipTxn.Kind)
	assert.True(t, tipTxn.Amount.Equal(dec("20")))
	assert.Equal(t, "tip: +20.00", tipTxn.Description)

	assert.Equal(t, domain.KindCreditRainFee, rainTxn.Kind)
	assert.True(t, rainTxn.Amount.Equal(dec("10")))
	assert.Equal(t, "rain fee: +10.00", rainTxn.Description)

	for _, txn := range result.Transactions {
		assert.Equal(t, "A-1", txn.ExternalOrderID)
	}

	assert.True(t, h.driver(t, "ana@example.com").Wallet.CurrentBalance.Equal(dec("15")))
	h.requirePaired(t, "ana@example.com")
	assert.Equal(t, 1, h.publisher.Count(string(service.EventWalletSettled)))
}

func TestSettle_OrderWithEarlierIncentiveStillSettles(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ivy@example.com", "77", domain.StatusActive)
	incentives := []domain.Incentive{{ID: "peak", Description: "Peak hour", Amount: dec("25"), Active: true}}
	h.setSettings(t, domain.SettingsPatch{
		Incentives: &incentives,
		RainFee:    &domain.RainFee{Active: true, Amount: dec("10")},
	})

	_, err := h.wallet.GrantIncentive(context.Background(), admin, service.IncentiveRequest{
		DriverKey:       "ivy@example.com",
		IncentiveID:     "peak",
		ExternalOrderID: "ORD-1",
	})
	require.NoError(t, err)
	h.requirePaired(t, "ivy@example.com")

	result, err := h.settlement.Settle(context.Background(), delivery("ORD-1", "77", domain.PaymentMethodOther, "80", "0"))
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, domain.KindCreditDelivery, result.Transactions[0].Kind)
	assert.Equal(t, domain.KindCreditRainFee, result.Transactions[1].Kind)

	assert.True(t, h.driver(t, "ivy@example.com").Wallet.CurrentBalance.Equal(dec("115")))
	h.requirePaired(t, "ivy@example.com")

	_, err = h.settlement.Settle(context.Background(), delivery("ORD-1", "77", domain.PaymentMethodOther, "80", "0"))
	assert.ErrorIs(t, err, service.ErrAlreadySettled, "the delivery itself is still deduplicated")
	assert.True(t, h.driver(t, "ivy@example.com").Wallet.CurrentBalance.Equal(dec("115")))
}

func TestSettle_RejectsSubCentAmounts(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "jo@example.com", "78", domain.StatusActive)

	for name, evt := range map[string]domain.DeliveryCompleted{
		"tip":          delivery("C-1", "78", domain.PaymentMethodCash, "100", "0.005"),
		"delivery fee": delivery("C-2", "78", domain.PaymentMethodOther, "80.001", "0"),
	} {
		_, err := h.settlement.Settle(context.Background(), evt)
		assert.ErrorIs(t, err, service.ErrInvalidEvent, name)
	}

	assert.True(t, h.driver(t, "jo@example.com").Wallet.CurrentBalance.IsZero())
	h.requirePaired(t, "jo@example.com")
}

func TestSettle_NonCashOrderCreditsDeliveryFee(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ben@example.com", "102", domain.StatusActive)

	result, err := h.settlement.Settle(context.Background(), delivery("B-1", "102", domain.PaymentMethodOther, "80", "0"))
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.Equal(t, domain.KindCreditDelivery, result.Transactions[0].Kind)
	assert.Equal(t, "delivery earning #B-1", result.Transactions[0].Description)
	assert.True(t, result.Delta().Equal(dec("80")))
	assert.True(t, h.driver(t, "ben@example.com").Wallet.CurrentBalance.Equal(dec("80")))
}

func TestSettle_UsesDefaultCommissionWithoutStoredSettings(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "cy@example.com", "103", domain.StatusActive)

	result, err := h.settlement.Settle(context.Background(), delivery("C-1", "103", domain.PaymentMethodCash, "50", "0"))
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.True(t, result.Transactions[0].Amount.Equal(dec("-15")))
}

func TestSettle_UnknownDriverMutatesNothing(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "dee@example.com", "104", domain.StatusActive)

	_, err := h.settlement.Settle(context.Background(), delivery("D-1", "999", domain.PaymentMethodOther, "80", "0"))
	require.ErrorIs(t, err, service.ErrDriverNotFound)

	assert.True(t, h.driver(t, "dee@example.com").Wallet.CurrentBalance.IsZero())
	assert.Empty(t, h.publisher.Messages())
}

func TestSettle_RejectsInvalidEvents(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "eve@example.com", "105", domain.StatusActive)

	cases := []domain.DeliveryCompleted{
		delivery("", "105", domain.PaymentMethodCash, "10", "0"),
		delivery("E-1", "", domain.PaymentMethodCash, "10", "0"),
		delivery("E-1", "105", "", "10", "0"),
		delivery("E-1", "105", domain.PaymentMethodOther, "-1", "0"),
		delivery("E-1", "105", domain.PaymentMethodOther, "10", "-5"),
	}
	for i, evt := range cases {
		_, err := h.settlement.Settle(context.Background(), evt)
		assert.ErrorIs(t, err, service.ErrInvalidEvent, "case %d", i)
	}
	h.requirePaired(t, "eve@example.com")
	assert.True(t, h.driver(t, "eve@example.com").Wallet.CurrentBalance.IsZero())
}

func TestSettle_SuspendedDriverIsNotSettled(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "fay@example.com", "106", domain.StatusSuspended)

	_, err := h.settlement.Settle(context.Background(), delivery("F-1", "106", domain.PaymentMethodOther, "80", "0"))
	require.ErrorIs(t, err, service.ErrDriverNotSettleable)
	assert.True(t, h.driver(t, "fay@example.com").Wallet.CurrentBalance.IsZero())
}

func TestSettle_ReplayIsNotCreditedTwice(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "gus@example.com", "107", domain.StatusActive)
	evt := delivery("G-1", "107", domain.PaymentMethodOther, "80", "10")

	_, err := h.settlement.Settle(context.Background(), evt)
	require.NoError(t, err)

	_, err = h.settlement.Settle(context.Background(), evt)
	require.ErrorIs(t, err, service.ErrAlreadySettled)

	assert.True(t, h.driver(t, "gus@example.com").Wallet.CurrentBalance.Equal(dec("90")))
	h.requirePaired(t, "gus@example.com")
	assert.Equal(t, 1, h.publisher.Count(string(service.EventWalletSettled)))
}

func TestSettle_CashOrderCrossingLimitRestricts(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "hal@example.com", "108", domain.StatusActive)
	h.setBalance(t, "hal@example.com", dec("-490"))

	result, err := h.settlement.Settle(context.Background(), delivery("H-1", "108", domain.PaymentMethodCash, "100", "0"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, result.PreviousStatus)
	assert.Equal(t, domain.StatusRestrictedDebt, result.Driver.OperationalStatus)
	assert.Equal(t, domain.StatusRestrictedDebt, h.driver(t, "hal@example.com").OperationalStatus)
	assert.Equal(t, 1, h.publisher.Count(string(service.EventDriverStatusChanged)))
}

func TestSettle_RecoveryIsInclusiveAtLimit(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ivy@example.com", "109", domain.StatusRestrictedDebt)
	h.setBalance(t, "ivy@example.com", dec("-580"))

	// -580 + 80 = -500, exactly the limit.
	result, err := h.settlement.Settle(context.Background(), delivery("I-1", "109", domain.PaymentMethodOther, "80", "0"))
	require.NoError(t, err)

	assert.True(t, result.Driver.Wallet.CurrentBalance.Equal(dec("-500")))
	assert.Equal(t, domain.StatusActive, result.Driver.OperationalStatus)
}

func TestSettle_StatusEvaluatedOnceAfterAllPostings(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "jo@example.com", "110", domain.StatusActive)
	h.setBalance(t, "jo@example.com", dec("-490"))

	// The commission alone would cross the limit; the tip brings it back.
	result, err := h.settlement.Settle(context.Background(), delivery("J-1", "110", domain.PaymentMethodCash, "100", "10"))
	require.NoError(t, err)

	assert.True(t, result.Driver.Wallet.CurrentBalance.Equal(dec("-495")))
	assert.Equal(t, domain.StatusActive, result.Driver.OperationalStatus)
	assert.False(t, result.StatusChanged())
}

func TestSettle_ConcurrentSettlementsForOneDriver(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "kai@example.com", "111", domain.StatusActive)

	const orders = 40
	var wg sync.WaitGroup
	wg.Add(orders)
	for i := 0; i < orders; i++ {
		go func(i int) {
			defer wg.Done()
			method := domain.PaymentMethodOther
			if i%2 == 0 {
				method = domain.PaymentMethodCash
			}
			_, err := h.settlement.Settle(context.Background(), delivery(fmt.Sprintf("K-%d", i), "111", method, "80", "5"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// 20 cash orders: -15 + 5 each. 20 other orders: +80 + 5 each.
	expected := dec("-10").Mul(dec("20")).Add(dec("85").Mul(dec("20")))
	assert.True(t, h.driver(t, "kai@example.com").Wallet.CurrentBalance.Equal(expected))
	h.requirePaired(t, "kai@example.com")

	txns, err := h.store.ListTransactions(context.Background(), "kai@example.com", 0)
	require.NoError(t, err)
	assert.Len(t, txns, orders*2)
}

func TestSettle_RecordsMetrics(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "lu@example.com", "112", domain.StatusActive)
	evt := delivery("L-1", "112", domain.PaymentMethodOther, "80", "0")

	_, err := h.settlement.Settle(context.Background(), evt)
	require.NoError(t, err)
	_, _ = h.settlement.Settle(context.Background(), evt)

	count, err := testutil.GatherAndCount(h.registry, "fleet_ledger_settlements_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per outcome")
}

func TestSettlementPostings_ZeroTipAndInactiveRainFeeAreOmitted(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.RainFee = domain.RainFee{Active: false, Amount: dec("10")}

	postings := service.SettlementPostings(delivery("M-1", "1", domain.PaymentMethodCash, "100", "0"), settings)
	require.Len(t, postings, 1)
	assert.True(t, postings[0].Amount.Equal(dec("-15")))
}
