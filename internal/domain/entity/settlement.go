package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Settlement component kinds
const (
	ComponentEarning   = "Earning"
	ComponentDeduction = "Deduction"
)

// SettlementComponent is one line of a full and final settlement
type SettlementComponent struct {
	Kind   string          `json:"kind"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Validate checks a single component line
func (c SettlementComponent) Validate() error {
	if c.Kind != ComponentEarning && c.Kind != ComponentDeduction {
		return fmt.Errorf("component kind must be %s or %s", ComponentEarning, ComponentDeduction)
	}
	if c.Label == "" {
		return fmt.Errorf("component label is required")
	}
	if c.Amount.IsNegative() {
		return fmt.Errorf("component amount must not be negative")
	}
	return nil
}

// SettlementPayload is the payload of a full and final settlement
type SettlementPayload struct {
	Components      []SettlementComponent `json:"components"`
	TotalEarnings   decimal.Decimal       `json:"totalEarnings"`
	TotalDeductions decimal.Decimal       `json:"totalDeductions"`
	NetPayable      decimal.Decimal       `json:"netPayable"`
	Notes           string                `json:"notes,omitempty"`
}

// Recalculate derives the totals from the component lines
func (p *SettlementPayload) Recalculate() {
	earnings := decimal.Zero
	deductions := decimal.Zero
	for _, c := range p.Components {
		switch c.Kind {
		case ComponentEarning:
			earnings = earnings.Add(c.Amount)
		case ComponentDeduction:
			deductions = deductions.Add(c.Amount)
		}
	}
	p.TotalEarnings = earnings
	p.TotalDeductions = deductions
	p.NetPayable = earnings.Sub(deductions)
}
