package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/service"
)

func TestNotification_SettlementEventBody(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ana@example.com", "701", domain.StatusActive)

	_, err := h.settlement.Settle(context.Background(), delivery("X-1", "701", domain.PaymentMethodOther, "45.5", "4.5"))
	require.NoError(t, err)

	msgs := h.publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "wallet.settled", msgs[0].RoutingKey)

	var evt service.Event
	require.NoError(t, json.Unmarshal(msgs[0].Body, &evt))
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "ana@example.com", evt.DriverKey)
	assert.Equal(t, "active", evt.Status)
	assert.Empty(t, evt.PreviousStatus)
	assert.Equal(t, "50.00", evt.Balance)
	require.Len(t, evt.Transactions, 2)
	assert.Equal(t, "45.50", evt.Transactions[0].Amount)
	assert.Equal(t, "X-1", evt.Transactions[1].ExternalOrderID)
}

func TestNotification_PublishFailureDoesNotFailTheOperation(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ana@example.com", "701", domain.StatusActive)
	h.publisher.PublishError = errors.New("broker gone")

	result, err := h.settlement.Settle(context.Background(), delivery("X-2", "701", domain.PaymentMethodOther, "10", "0"))
	require.NoError(t, err)
	assert.True(t, result.Driver.Wallet.CurrentBalance.Equal(dec("10")))
}

func TestNotification_NilServiceIsSafe(t *testing.T) {
	var n *service.NotificationService
	assert.NotPanics(t, func() {
		n.NotifyLedgerChange(context.Background(), service.EventWalletSettled, &service.LedgerResult{})
		n.NotifyStatusChanged(context.Background(), domain.Driver{}, domain.StatusActive)
	})
}
