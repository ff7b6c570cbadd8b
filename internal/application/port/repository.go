package port

import (
	"context"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// RecordFilter narrows a tenant-scoped record listing. Zero fields do not filter.
type RecordFilter struct {
	Workflow  workflow.Type
	Status    workflow.Status
	SubjectID string

	// SubjectOrManager keeps records whose subject or reviewing manager is this user
	SubjectOrManager string

	Limit  int
	Offset int
}

// RecordRepository persists workflow records. Every read is scoped by tenant.
type RecordRepository interface {
	// Create inserts a new record
	Create(ctx context.Context, rec *entity.Record) error

	// Get loads a record. It returns workflow.ErrNotFound when the id is unknown and
	// workflow.ErrTenantMismatch when the record belongs to another tenant.
	Get(ctx context.Context, tenantID, id string) (*entity.Record, error)

	// Update writes rec if the stored version still equals expectedVersion,
	// otherwise it returns workflow.ErrStaleState
	Update(ctx context.Context, rec *entity.Record, expectedVersion int64) error

	// List returns records of one tenant, newest first
	List(ctx context.Context, tenantID string, filter RecordFilter) ([]*entity.Record, error)
}

// LeaveBalanceRepository persists leave balances and their change log
type LeaveBalanceRepository interface {
	GetBalance(ctx context.Context, tenantID, employeeID, leaveType string) (*entity.EmployeeLeaveBalance, error)
	ListBalances(ctx context.Context, tenantID, employeeID string) ([]*entity.EmployeeLeaveBalance, error)
	UpsertBalance(ctx context.Context, balance *entity.EmployeeLeaveBalance) error
	AppendChange(ctx context.Context, change *entity.LeaveBalanceChangeLog) error
	ListChanges(ctx context.Context, tenantID, employeeID string) ([]*entity.LeaveBalanceChangeLog, error)
}

// ExitStatusRepository persists employee exit status
type ExitStatusRepository interface {
	GetExitStatus(ctx context.Context, tenantID, employeeID string) (*entity.ExitStatus, error)
	UpsertExitStatus(ctx context.Context, status *entity.ExitStatus) error
}

// PayrollSyncRepository persists payroll sync flags
type PayrollSyncRepository interface {
	GetPayrollSync(ctx context.Context, tenantID, employeeID string) (*entity.PayrollSync, error)
	UpsertPayrollSync(ctx context.Context, sync *entity.PayrollSync) error
}

// LetterRepository persists letter grants of approved proposals
type LetterRepository interface {
	GetLetter(ctx context.Context, tenantID, proposalID string) (*entity.LetterGrant, error)
	UpsertLetter(ctx context.Context, letter *entity.LetterGrant) error
}

// ProfileRepository persists employee profiles
type ProfileRepository interface {
	GetProfile(ctx context.Context, tenantID, employeeID string) (*entity.EmployeeProfile, error)
	UpsertProfile(ctx context.Context, profile *entity.EmployeeProfile) error
}

// EffectLogRepository records applied side effects
type EffectLogRepository interface {
	// HasEffect reports whether the effect key was applied
	HasEffect(ctx context.Context, key string) (bool, error)

	// RecordEffect marks the effect key as applied
	RecordEffect(ctx context.Context, log *entity.EffectLog) error
}

// Store bundles every repository of one backend
type Store interface {
	TransactionManager
	Records() RecordRepository
	LeaveBalances() LeaveBalanceRepository
	ExitStatuses() ExitStatusRepository
	PayrollSyncs() PayrollSyncRepository
	Letters() LetterRepository
	Profiles() ProfileRepository
	EffectLogs() EffectLogRepository
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
