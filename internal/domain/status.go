package domain

import "github.com/shopspring/decimal"

// transitions lists the operational status changes an explicit action may make.
// Settlement-driven changes between active and restricted_debt go through EvaluateDebtStatus.
var transitions = map[OperationalStatus][]OperationalStatus{
	StatusUninitialized:     {StatusPendingValidation},
	StatusPendingValidation: {StatusActive, StatusRejected},
	StatusActive:            {StatusSuspended, StatusRestrictedDebt},
	StatusRestrictedDebt:    {StatusActive, StatusSuspended},
}

// CanTransition reports whether an explicit action may move a driver from one status to another.
// Suspended and rejected have no outgoing transitions.
func CanTransition(from, to OperationalStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EvaluateDebtStatus returns the status a driver should hold after its balance changed.
//
// An active driver whose balance falls strictly below the debt limit becomes restricted_debt.
// A restricted_debt driver whose balance is at or above the limit becomes active again.
// Every other status is returned unchanged.
func EvaluateDebtStatus(status OperationalStatus, balance, debtLimit decimal.Decimal) OperationalStatus {
	switch status {
	case StatusActive:
		if balance.LessThan(debtLimit) {
			return StatusRestrictedDebt
		}
	case StatusRestrictedDebt:
		if balance.GreaterThanOrEqual(debtLimit) {
			return StatusActive
		}
	}
	return status
}

// CanSettle reports whether completed deliveries are booked for a driver in this status.
func CanSettle(status OperationalStatus) bool {
	return status == StatusActive || status == StatusRestrictedDebt
}
