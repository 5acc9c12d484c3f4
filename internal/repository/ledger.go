package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fleet/internal/domain"
)

// LedgerStore is the only sanctioned way to mutate a driver's wallet or status.
type LedgerStore interface {
	// GetDriver retrieves a driver by key.
	GetDriver(ctx context.Context, key string) (*domain.Driver, error)

	// FindDriverByExternalDispatchID retrieves a driver by the dispatch provider's id.
	FindDriverByExternalDispatchID(ctx context.Context, externalID string) (*domain.Driver, error)

	// WithDriverTransaction runs fn against a consistent view of the driver and commits
	// the resulting balance, status and new transactions atomically. Any error from fn
	// rolls back everything. Writes for the same driver are serialized.
	WithDriverTransaction(ctx context.Context, key string, fn func(tx DriverTx) error) error
}

// Posting is a single wallet movement requested inside a driver transaction.
type Posting struct {
	Kind            domain.TransactionKind
	Amount          decimal.Decimal
	ExternalOrderID string
	Description     string
}

// DriverTx is the view handed to a WithDriverTransaction callback.
type DriverTx interface {
	// Driver returns a snapshot including the effect of postings made so far.
	Driver() domain.Driver

	// Post records a transaction and applies its amount to the balance.
	Post(p Posting) domain.Transaction

	// SetOperationalStatus changes the driver's operational status.
	SetOperationalStatus(status domain.OperationalStatus)

	// Update changes profile fields. Wallet changes made by fn are discarded;
	// balances only move through Post.
	Update(fn func(d *domain.Driver))

	// HasOrder reports whether a transaction for the given external order already exists.
	// With kinds set, only transactions of those kinds count.
	HasOrder(ctx context.Context, externalOrderID string, kinds ...domain.TransactionKind) (bool, error)
}

// OrderLookup reports whether a committed transaction of one of kinds references
// the order. Empty kinds matches every kind.
type OrderLookup func(ctx context.Context, externalOrderID string, kinds []domain.TransactionKind) (bool, error)

// MatchesKind reports whether kind is in kinds. Empty kinds matches everything.
func MatchesKind(kind domain.TransactionKind, kinds []domain.TransactionKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// TxBuffer accumulates the writes of one driver transaction. Stores commit
// Result() and Transactions() together, which keeps balance and ledger paired.
type TxBuffer struct {
	original domain.Driver
	working  domain.Driver
	posted   []domain.Transaction
	lookup   OrderLookup
	now      func() time.Time
}

// NewTxBuffer starts a buffer over a freshly read driver.
func NewTxBuffer(driver domain.Driver, lookup OrderLookup, now func() time.Time) *TxBuffer {
	if now == nil {
		now = time.Now
	}
	return &TxBuffer{
		original: driver,
		working:  driver,
		lookup:   lookup,
		now:      now,
	}
}

// Driver implements DriverTx.
func (b *TxBuffer) Driver() domain.Driver {
	return b.working
}

// Post implements DriverTx. The amount is rounded to cents so the balance
// always equals the sum of the stored entries.
func (b *TxBuffer) Post(p Posting) domain.Transaction {
	txn := domain.Transaction{
		ID:              uuid.New().String(),
		DriverKey:       b.original.Key,
		Kind:            p.Kind,
		Amount:          p.Amount.Round(domain.MoneyPlaces),
		ExternalOrderID: p.ExternalOrderID,
		Description:     p.Description,
		Timestamp:       b.now().UTC(),
	}
	b.posted = append(b.posted, txn)
	b.working.Wallet.CurrentBalance = b.working.Wallet.CurrentBalance.Add(txn.Amount)
	return txn
}

// SetOperationalStatus implements DriverTx.
func (b *TxBuffer) SetOperationalStatus(status domain.OperationalStatus) {
	b.working.OperationalStatus = status
}

// Update implements DriverTx.
func (b *TxBuffer) Update(fn func(d *domain.Driver)) {
	wallet := b.working.Wallet
	key := b.working.Key
	fn(&b.working)
	b.working.Wallet = wallet
	b.working.Key = key
}

// HasOrder implements DriverTx.
func (b *TxBuffer) HasOrder(ctx context.Context, externalOrderID string, kinds ...domain.TransactionKind) (bool, error) {
	if externalOrderID == "" {
		return false, nil
	}
	for _, t := range b.posted {
		if t.ExternalOrderID == externalOrderID && MatchesKind(t.Kind, kinds) {
			return true, nil
		}
	}
	if b.lookup == nil {
		return false, nil
	}
	return b.lookup(ctx, externalOrderID, kinds)
}

// Result returns the driver state to persist.
func (b *TxBuffer) Result() domain.Driver {
	return b.working
}

// Transactions returns the entries posted during the transaction.
func (b *TxBuffer) Transactions() []domain.Transaction {
	return b.posted
}

// Changed reports whether anything needs to be written.
func (b *TxBuffer) Changed() bool {
	return len(b.posted) > 0 || !sameProfile(b.original, b.working)
}

func sameProfile(a, b domain.Driver) bool {
	return a.OperationalStatus == b.OperationalStatus &&
		a.ApplicationStatus == b.ApplicationStatus &&
		a.ExternalDispatchID == b.ExternalDispatchID &&
		a.FullName == b.FullName &&
		a.Phone == b.Phone &&
		a.ApplicationSubmittedAt.Equal(b.ApplicationSubmittedAt) &&
		a.ApprovedAt.Equal(b.ApprovedAt) &&
		a.ProStatus == b.ProStatus &&
		sameApplication(a.Application, b.Application)
}

func sameApplication(a, b domain.Application) bool {
	if a.PersonalInfo != b.PersonalInfo || a.VehicleInfo != b.VehicleInfo || a.Legal != b.Legal {
		return false
	}
	if len(a.Documents) != len(b.Documents) {
		return false
	}
	for k, v := range a.Documents {
		if b.Documents[k] != v {
			return false
		}
	}
	return true
}
