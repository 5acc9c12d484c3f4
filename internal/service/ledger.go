package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"fleet/internal/domain"
	"fleet/internal/metrics"
	"fleet/internal/repository"
)

// LedgerResult describes one committed driver transaction.
type LedgerResult struct {
	Driver         domain.Driver
	Transactions   []domain.Transaction
	PreviousStatus domain.OperationalStatus
}

// Delta returns the net balance change.
func (r *LedgerResult) Delta() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range r.Transactions {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// StatusChanged reports whether the operational status moved.
func (r *LedgerResult) StatusChanged() bool {
	return r.PreviousStatus != r.Driver.OperationalStatus
}

// postAndEvaluate posts every entry and then re-evaluates the debt status once
// against the final balance.
func postAndEvaluate(tx repository.DriverTx, postings []repository.Posting) *LedgerResult {
	result := &LedgerResult{PreviousStatus: tx.Driver().OperationalStatus}
	for _, p := range postings {
		result.Transactions = append(result.Transactions, tx.Post(p))
	}

	d := tx.Driver()
	if next := domain.EvaluateDebtStatus(d.OperationalStatus, d.Wallet.CurrentBalance, d.Wallet.DebtLimit); next != d.OperationalStatus {
		tx.SetOperationalStatus(next)
	}
	result.Driver = tx.Driver()
	return result
}

// recordCommitted updates counters for a committed result.
func recordCommitted(m *metrics.Metrics, result *LedgerResult) {
	for _, t := range result.Transactions {
		m.Posting(string(t.Kind))
	}
	if result.StatusChanged() {
		m.Transition(string(result.PreviousStatus), string(result.Driver.OperationalStatus))
	}
}

// mapStoreError translates store errors into service errors.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrDriverNotFound
	case errors.Is(err, repository.ErrDuplicateOrder):
		return ErrAlreadySettled
	case errors.Is(err, repository.ErrAlreadyExists):
		return ErrDriverExists
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
