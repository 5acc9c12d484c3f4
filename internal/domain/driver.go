package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OperationalStatus represents whether a driver may work and receive orders.
type OperationalStatus string

const (
	StatusUninitialized     OperationalStatus = "uninitialized"
	StatusPendingValidation OperationalStatus = "pending_validation"
	StatusActive            OperationalStatus = "active"
	StatusRestrictedDebt    OperationalStatus = "restricted_debt"
	StatusSuspended         OperationalStatus = "suspended"
	StatusRejected          OperationalStatus = "rejected"
)

// Valid reports whether s is a known operational status.
func (s OperationalStatus) Valid() bool {
	switch s {
	case StatusUninitialized, StatusPendingValidation, StatusActive,
		StatusRestrictedDebt, StatusSuspended, StatusRejected:
		return true
	}
	return false
}

// ApplicationStatus tags the onboarding stage of a driver.
type ApplicationStatus string

const (
	ApplicationAccountCreated ApplicationStatus = "account_created"
	ApplicationPendingReview  ApplicationStatus = "pending_review"
	ApplicationApproved       ApplicationStatus = "approved"
	ApplicationRejected       ApplicationStatus = "rejected"
)

// ProLevel is the gamification tier shown to drivers.
type ProLevel string

const (
	ProLevelBronze  ProLevel = "Bronze"
	ProLevelSilver  ProLevel = "Silver"
	ProLevelGold    ProLevel = "Gold"
	ProLevelDiamond ProLevel = "Diamond"
)

// DefaultDebtLimit is assigned to new wallets unless configured otherwise.
var DefaultDebtLimit = decimal.NewFromInt(-500)

// Wallet holds a driver's running balance and the debt threshold that gates cash orders.
type Wallet struct {
	CurrentBalance decimal.Decimal
	DebtLimit      decimal.Decimal
}

// ProStatus is cosmetic and never consulted by the ledger.
type ProStatus struct {
	Level  ProLevel
	Points int
}

// PersonalInfo is collected by the onboarding wizard.
type PersonalInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	CURP     string `json:"curp"`
	RFC      string `json:"rfc"`
	NSS      string `json:"nss"`
}

// VehicleInfo describes the vehicle a driver works with.
type VehicleInfo struct {
	Type  string `json:"type"`
	Brand string `json:"brand"`
	Plate string `json:"plate"`
}

// LegalInfo records the accepted contract.
type LegalInfo struct {
	ContractVersion    string `json:"contractVersion"`
	SignatureTimestamp int64  `json:"signatureTimestamp"`
	IPAddress          string `json:"ipAddress"`
}

// Application is the onboarding payload submitted by a driver.
// Documents maps a document name (e.g. "license") to its storage URL.
type Application struct {
	PersonalInfo PersonalInfo      `json:"personalInfo"`
	VehicleInfo  VehicleInfo       `json:"vehicleInfo"`
	Legal        LegalInfo         `json:"legal"`
	Documents    map[string]string `json:"documents"`
}

// Driver represents a driver record. Key is the lower-cased email.
type Driver struct {
	Key                    string
	UID                    string
	FullName               string
	Phone                  string
	ApplicationStatus      ApplicationStatus
	OperationalStatus      OperationalStatus
	Wallet                 Wallet
	ExternalDispatchID     string // empty until approved
	ProStatus              ProStatus
	Application            Application
	CreatedAt              time.Time
	ApplicationSubmittedAt time.Time
	ApprovedAt             time.Time
}

// NormalizeKey returns the canonical driver key for an email address.
func NormalizeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewDriver builds a freshly registered driver record.
func NewDriver(email, fullName, phone, uid string, debtLimit decimal.Decimal, now time.Time) *Driver {
	return &Driver{
		Key:               NormalizeKey(email),
		UID:               uid,
		FullName:          strings.TrimSpace(fullName),
		Phone:             strings.TrimSpace(phone),
		ApplicationStatus: ApplicationAccountCreated,
		OperationalStatus: StatusUninitialized,
		Wallet: Wallet{
			CurrentBalance: decimal.Zero,
			DebtLimit:      debtLimit,
		},
		ProStatus: ProStatus{Level: ProLevelBronze},
		CreatedAt: now,
	}
}
