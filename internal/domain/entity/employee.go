package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmployeeLeaveBalance is the current balance of one leave type for an employee
type EmployeeLeaveBalance struct {
	TenantID       string          `json:"tenant_id"`
	EmployeeID     string          `json:"employee_id"`
	LeaveType      string          `json:"leave_type"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LeaveBalanceChangeLog records one movement of a leave balance
type LeaveBalanceChangeLog struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	EmployeeID   string          `json:"employee_id"`
	LeaveType    string          `json:"leave_type"`
	Delta        decimal.Decimal `json:"delta"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	RecordID     string          `json:"record_id"`
	Reason       string          `json:"reason"`
	CreatedAt    time.Time       `json:"created_at"`
	CreatedBy    string          `json:"created_by"`
}

// ExitStatus tracks an employee's path out of the company
type ExitStatus struct {
	TenantID       string    `json:"tenant_id"`
	EmployeeID     string    `json:"employee_id"`
	ResignationID  string    `json:"resignation_id,omitempty"`
	LastWorkingDay string    `json:"last_working_day,omitempty"`
	ExitEligible   bool      `json:"exit_eligible"`
	SettlementID   string    `json:"settlement_id,omitempty"`
	ExitCompleted  bool      `json:"exit_completed"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Payroll sync statuses
const (
	PayrollSyncPending = "PENDING"
	PayrollSyncSynced  = "SYNCED"
)

// PayrollSync flags an employee whose payroll must be recomputed
type PayrollSync struct {
	TenantID       string    `json:"tenant_id"`
	EmployeeID     string    `json:"employee_id"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason"`
	SourceRecordID string    `json:"source_record_id"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LetterGrant tracks whether an approved proposal may have its letter issued
type LetterGrant struct {
	TenantID   string     `json:"tenant_id"`
	ProposalID string     `json:"proposal_id"`
	EmployeeID string     `json:"employee_id"`
	Unlocked   bool       `json:"unlocked"`
	Issued     bool       `json:"issued"`
	Body       string     `json:"body,omitempty"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
	IssuedBy   string     `json:"issued_by,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ProfileFieldManager is the profile field naming an employee's reporting manager
const ProfileFieldManager = "managerId"

// EmployeeProfile holds the editable profile fields of an employee
type EmployeeProfile struct {
	TenantID   string            `json:"tenant_id"`
	EmployeeID string            `json:"employee_id"`
	Fields     map[string]string `json:"fields"`
	UpdatedAt  time.Time         `json:"updated_at"`
	UpdatedBy  string            `json:"updated_by"`
}

// EffectLog marks a side effect as applied so re-runs are no-ops
type EffectLog struct {
	Key       string    `json:"key"`
	TenantID  string    `json:"tenant_id"`
	RecordID  string    `json:"record_id"`
	Effect    string    `json:"effect"`
	AppliedAt time.Time `json:"applied_at"`
}
