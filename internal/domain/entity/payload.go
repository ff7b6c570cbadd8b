package entity

import (
	"github.com/shopspring/decimal"
)

// Payload field names read by guards and effects
const (
	FieldTitle           = "title"
	FieldLetterIssued    = "letterIssued"
	FieldComponents      = "components"
	FieldTotalEarnings   = "totalEarnings"
	FieldTotalDeductions = "totalDeductions"
	FieldNetPayable      = "netPayable"
)

// ResignationPayload is the payload of a resignation
type ResignationPayload struct {
	Reason           string `json:"reason"`
	LastWorkingDay   string `json:"lastWorkingDay"`
	NoticePeriodDays int    `json:"noticePeriodDays,omitempty"`
}

// LeavePayload is the payload of a leave request
type LeavePayload struct {
	LeaveType string          `json:"leaveType"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Days      decimal.Decimal `json:"days"`
	Reason    string          `json:"reason,omitempty"`
}

// ExpensePayload is the payload of an expense claim
type ExpensePayload struct {
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExpenseDate string          `json:"expenseDate,omitempty"`
}

// Proposal kinds
const (
	ProposalIncrement = "Increment"
	ProposalPromotion = "Promotion"
)

// ProposalPayload is the payload of an increment or promotion proposal
type ProposalPayload struct {
	Kind           string          `json:"kind"`
	CurrentCTC     decimal.Decimal `json:"currentCtc"`
	ProposedCTC    decimal.Decimal `json:"proposedCtc"`
	NewDesignation string          `json:"newDesignation,omitempty"`
	EffectiveDate  string          `json:"effectiveDate"`
	Justification  string          `json:"justification,omitempty"`
	LetterIssued   bool            `json:"letterIssued"`
}

// AppraisalPayload is the payload of an appraisal
type AppraisalPayload struct {
	Cycle         string `json:"cycle"`
	SelfRating    int    `json:"selfRating,omitempty"`
	ManagerRating int    `json:"managerRating,omitempty"`
	Comments      string `json:"comments,omitempty"`
}

// ProfileChangePayload is the payload of a profile change request
type ProfileChangePayload struct {
	Changes map[string]string `json:"changes"`
}

// RaterPayload is the payload of a 360 feedback rater assignment
type RaterPayload struct {
	RevieweeID   string            `json:"revieweeId"`
	Relationship string            `json:"relationship"`
	Answers      map[string]string `json:"answers,omitempty"`
}
