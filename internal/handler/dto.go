package handler

import (
	"time"

	"fleet/internal/domain"
	"fleet/internal/service"
)

// WalletResponse is the wallet part of a driver response.
type WalletResponse struct {
	CurrentBalance string `json:"currentBalance"`
	DebtLimit      string `json:"debtLimit"`
}

// ProStatusResponse is the gamification part of a driver response.
type ProStatusResponse struct {
	Level  string `json:"level"`
	Points int    `json:"points"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	Key                    string              `json:"key"`
	UID                    string              `json:"uid,omitempty"`
	FullName               string              `json:"fullName"`
	Phone                  string              `json:"phone"`
	ApplicationStatus      string              `json:"applicationStatus"`
	OperationalStatus      string              `json:"operationalStatus"`
	Wallet                 WalletResponse      `json:"wallet"`
	ExternalDispatchID     *string             `json:"externalDispatchId"`
	ProStatus              ProStatusResponse   `json:"proStatus"`
	Application            *domain.Application `json:"application,omitempty"`
	CreatedAt              time.Time           `json:"createdAt"`
	ApplicationSubmittedAt *time.Time          `json:"applicationSubmittedAt,omitempty"`
	ApprovedAt             *time.Time          `json:"approvedAt,omitempty"`
}

// TransactionResponse is the HTTP response for a ledger entry.
type TransactionResponse struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Amount          string    `json:"amount"`
	ExternalOrderID string    `json:"externalOrderId,omitempty"`
	Description     string    `json:"description"`
	Timestamp       time.Time `json:"timestamp"`
}

// LedgerResponse is returned by every wallet mutation.
type LedgerResponse struct {
	Driver       DriverResponse        `json:"driver"`
	Delta        string                `json:"delta"`
	Transactions []TransactionResponse `json:"transactions"`
}

func toDriverResponse(d *domain.Driver, withApplication bool) DriverResponse {
	resp := DriverResponse{
		Key:               d.Key,
		UID:               d.UID,
		FullName:          d.FullName,
		Phone:             d.Phone,
		ApplicationStatus: string(d.ApplicationStatus),
		OperationalStatus: string(d.OperationalStatus),
		Wallet: WalletResponse{
			CurrentBalance: d.Wallet.CurrentBalance.StringFixed(2),
			DebtLimit:      d.Wallet.DebtLimit.StringFixed(2),
		},
		ProStatus: ProStatusResponse{
			Level:  string(d.ProStatus.Level),
			Points: d.ProStatus.Points,
		},
		CreatedAt:              d.CreatedAt,
		ApplicationSubmittedAt: optionalTime(d.ApplicationSubmittedAt),
		ApprovedAt:             optionalTime(d.ApprovedAt),
	}
	if d.ExternalDispatchID != "" {
		id := d.ExternalDispatchID
		resp.ExternalDispatchID = &id
	}
	if withApplication {
		app := d.Application
		resp.Application = &app
	}
	return resp
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		Kind:            string(t.Kind),
		Amount:          t.Amount.StringFixed(2),
		ExternalOrderID: t.ExternalOrderID,
		Description:     t.Description,
		Timestamp:       t.Timestamp,
	}
}

func toTransactionResponses(txns []*domain.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, toTransactionResponse(t))
	}
	return resp
}

func toLedgerResponse(r *service.LedgerResult) LedgerResponse {
	resp := LedgerResponse{
		Driver:       toDriverResponse(&r.Driver, false),
		Delta:        r.Delta().StringFixed(2),
		Transactions: make([]TransactionResponse, 0, len(r.Transactions)),
	}
	for i := range r.Transactions {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(&r.Transactions[i]))
	}
	return resp
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
