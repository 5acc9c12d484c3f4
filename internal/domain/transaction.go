package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger entry.
type TransactionKind string

const (
	KindCreditDelivery  TransactionKind = "credit_delivery"
	KindDebitCommission TransactionKind = "debit_commission"
	KindCreditTip       TransactionKind = "credit_tip"
	KindCreditRainFee   TransactionKind = "credit_rain_fee"
	KindCreditIncentive TransactionKind = "credit_incentive"
	KindPayout          TransactionKind = "payout"
	KindAdjustment      TransactionKind = "adjustment"
)

// SettlementKinds are the entries a delivery always books first. One of them
// existing for an order means the delivery was settled.
var SettlementKinds = []TransactionKind{KindCreditDelivery, KindDebitCommission}

// MoneyPlaces is the precision the ledger stores amounts at.
const MoneyPlaces = 2

// IsCents reports whether d is representable in whole cents.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// Transaction is an immutable ledger entry. Positive amounts credit the driver.
type Transaction struct {
	ID              string
	DriverKey       string
	Kind            TransactionKind
	Amount          decimal.Decimal
	ExternalOrderID string
	Description     string
	Timestamp       time.Time
}
