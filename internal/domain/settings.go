package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseCommission is charged per cash order when settings carry no value.
var DefaultBaseCommission = decimal.NewFromFloat(15.00)

// RainFee is a flat bonus credited on every settlement while active.
type RainFee struct {
	Active bool            `json:"active"`
	Amount decimal.Decimal `json:"amount"`
}

// Incentive is an advertised bonus. Only admins grant incentives explicitly.
type Incentive struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Active      bool            `json:"active"`
}

// OperationalSettings is the global, admin-editable pricing configuration.
// Version increases on every update.
type OperationalSettings struct {
	BaseCommission decimal.Decimal `json:"baseCommission"`
	RainFee        RainFee         `json:"rainFee"`
	Incentives     []Incentive     `json:"incentives"`
	Version        int64           `json:"version"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// DefaultSettings returns the settings used before any admin update exists.
func DefaultSettings() OperationalSettings {
	return OperationalSettings{
		BaseCommission: DefaultBaseCommission,
		Incentives:     []Incentive{},
	}
}

// ActiveRainFee returns the rain fee to credit, or zero when it does not apply.
func (s OperationalSettings) ActiveRainFee() decimal.Decimal {
	if s.RainFee.Active && s.RainFee.Amount.IsPositive() {
		return s.RainFee.Amount
	}
	return decimal.Zero
}

// Incentive looks up an incentive by ID.
func (s OperationalSettings) Incentive(id string) (Incentive, bool) {
	for _, inc := range s.Incentives {
		if inc.ID == id {
			return inc, true
		}
	}
	return Incentive{}, false
}

// SettingsPatch carries a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	BaseCommission *decimal.Decimal `json:"baseCommission"`
	RainFee        *RainFee         `json:"rainFee"`
	Incentives     *[]Incentive     `json:"incentives"`
}

// Apply merges the patch into s and returns the result.
func (p SettingsPatch) Apply(s OperationalSettings) OperationalSettings {
	if p.BaseCommission != nil {
		s.BaseCommission = *p.BaseCommission
	}
	if p.RainFee != nil {
		s.RainFee = *p.RainFee
	}
	if p.Incentives != nil {
		s.Incentives = append([]Incentive(nil), (*p.Incentives)...)
	}
	return s
}
