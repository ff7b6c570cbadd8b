package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// EmployeeRepository persists the employee-side state that approvals change:
// exit status, payroll sync flags, letter grants and profiles
type EmployeeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *sql.DB, logger *zap.Logger) *EmployeeRepository {
	return &EmployeeRepository{
		db:     db,
		logger: logger,
	}
}

// GetExitStatus returns the exit status of an employee
func (r *EmployeeRepository) GetExitStatus(ctx context.Context, tenantID, employeeID string) (*entity.ExitStatus, error) {
	query := `
		SELECT tenant_id, employee_id, resignation_id, last_working_day,
			exit_eligible, settlement_id, exit_completed, updated_at
		FROM exit_statuses
		WHERE tenant_id = ? AND employee_id = ?
	`

	var s entity.ExitStatus
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, tenantID, employeeID).Scan(
		&s.TenantID,
		&s.EmployeeID,
		&s.ResignationID,
		&s.LastWorkingDay,
		&s.ExitEligible,
		&s.SettlementID,
		&s.ExitCompleted,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: exit status of %s", workflow.ErrNotFound, employeeID)
	}
	if err != nil {
		r.logger.Error("Failed to get exit status", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to get exit status: %w", err)
	}

	return &s, nil
}

// UpsertExitStatus writes the exit status of an employee
func (r *EmployeeRepository) UpsertExitStatus(ctx context.Context, status *entity.ExitStatus) error {
	query := `
		INSERT INTO exit_statuses (
			tenant_id, employee_id, resignation_id, last_working_day,
			exit_eligible, settlement_id, exit_completed, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, employee_id) DO UPDATE SET
			resignation_id = excluded.resignation_id,
			last_working_day = excluded.last_working_day,
			exit_eligible = excluded.exit_eligible,
			settlement_id = excluded.settlement_id,
			exit_completed = excluded.exit_completed,
			updated_at = excluded.updated_at
	`

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		status.TenantID,
		status.EmployeeID,
		status.ResignationID,
		status.LastWorkingDay,
		status.ExitEligible,
		status.SettlementID,
		status.ExitCompleted,
		status.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert exit status", zap.String("employee_id", status.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to upsert exit status: %w", err)
	}

	return nil
}

// GetPayrollSync returns the payroll sync flag of an employee
func (r *EmployeeRepository) GetPayrollSync(ctx context.Context, tenantID, employeeID string) (*entity.PayrollSync, error) {
	query := `
		SELECT tenant_id, employee_id, status, reason, source_record_id, updated_at
		FROM payroll_syncs
		WHERE tenant_id = ? AND employee_id = ?
	`

	var p entity.PayrollSync
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, tenantID, employeeID).Scan(
		&p.TenantID,
		&p.EmployeeID,
		&p.Status,
		&p.Reason,
		&p.SourceRecordID,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payroll sync of %s", workflow.ErrNotFound, employeeID)
	}
	if err != nil {
		r.logger.Error("Failed to get payroll sync", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payroll sync: %w", err)
	}

	return &p, nil
}

// UpsertPayrollSync writes the payroll sync flag of an employee
func (r *EmployeeRepository) UpsertPayrollSync(ctx context.Context, sync *entity.PayrollSync) error {
	query := `
		INSERT INTO payroll_syncs (tenant_id, employee_id, status, reason, source_record_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, employee_id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			source_record_id = excluded.source_record_id,
			updated_at = excluded.updated_at
	`

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		sync.TenantID,
		sync.EmployeeID,
		sync.Status,
		sync.Reason,
		sync.SourceRecordID,
		sync.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert payroll sync", zap.String("employee_id", sync.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to upsert payroll sync: %w", err)
	}

	return nil
}

// GetLetter returns the letter grant of a proposal
func (r *EmployeeRepository) GetLetter(ctx context.Context, tenantID, proposalID string) (*entity.LetterGrant, error) {
	query := `
		SELECT tenant_id, proposal_id, employee_id, unlocked, issued, body,
			issued_at, issued_by, updated_at
		FROM letter_grants
		WHERE tenant_id = ? AND proposal_id = ?
	`

	var (
		l        entity.LetterGrant
		issuedAt sql.NullTime
	)
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, tenantID, proposalID).Scan(
		&l.TenantID,
		&l.ProposalID,
		&l.EmployeeID,
		&l.Unlocked,
		&l.Issued,
		&l.Body,
		&issuedAt,
		&l.IssuedBy,
		&l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: letter for %s", workflow.ErrNotFound, proposalID)
	}
	if err != nil {
		r.logger.Error("Failed to get letter", zap.String("proposal_id", proposalID), zap.Error(err))
		return nil, fmt.Errorf("failed to get letter: %w", err)
	}

	if issuedAt.Valid {
		l.IssuedAt = &issuedAt.Time
	}

	return &l, nil
}

// UpsertLetter writes the letter grant of a proposal
func (r *EmployeeRepository) UpsertLetter(ctx context.Context, letter *entity.LetterGrant) error {
	query := `
		INSERT INTO letter_grants (
			tenant_id, proposal_id, employee_id, unlocked, issued, body,
			issued_at, issued_by, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, proposal_id) DO UPDATE SET
			employee_id = excluded.employee_id,
			unlocked = excluded.unlocked,
			issued = excluded.issued,
			body = excluded.body,
			issued_at = excluded.issued_at,
			issued_by = excluded.issued_by,
			updated_at = excluded.updated_at
	`

	var issuedAt sql.NullTime
	if letter.IssuedAt != nil {
		issuedAt = sql.NullTime{Time: *letter.IssuedAt, Valid: true}
	}

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		letter.TenantID,
		letter.ProposalID,
		letter.EmployeeID,
		letter.Unlocked,
		letter.Issued,
		letter.Body,
		issuedAt,
		letter.IssuedBy,
		letter.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert letter", zap.String("proposal_id", letter.ProposalID), zap.Error(err))
		return fmt.Errorf("failed to upsert letter: %w", err)
	}

	return nil
}

// GetProfile returns the profile of an employee
func (r *EmployeeRepository) GetProfile(ctx context.Context, tenantID, employeeID string) (*entity.EmployeeProfile, error) {
	query := `
		SELECT tenant_id, employee_id, fields, updated_at, updated_by
		FROM employee_profiles
		WHERE tenant_id = ? AND employee_id = ?
	`

	var (
		p      entity.EmployeeProfile
		fields string
	)
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, tenantID, employeeID).Scan(
		&p.TenantID,
		&p.EmployeeID,
		&fields,
		&p.UpdatedAt,
		&p.UpdatedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile of %s", workflow.ErrNotFound, employeeID)
	}
	if err != nil {
		r.logger.Error("Failed to get profile", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p.Fields = make(map[string]string)
	if err := json.Unmarshal([]byte(fields), &p.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode profile fields: %w", err)
	}

	return &p, nil
}

// UpsertProfile writes the profile of an employee
func (r *EmployeeRepository) UpsertProfile(ctx context.Context, profile *entity.EmployeeProfile) error {
	fields := profile.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode profile fields: %w", err)
	}

	query := `
		INSERT INTO employee_profiles (tenant_id, employee_id, fields, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, employee_id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`

	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		profile.TenantID,
		profile.EmployeeID,
		string(raw),
		profile.UpdatedAt,
		profile.UpdatedBy,
	)
	if err != nil {
		r.logger.Error("Failed to upsert profile", zap.String("employee_id", profile.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// HasEffect reports whether an effect key was applied
func (r *EmployeeRepository) HasEffect(ctx context.Context, key string) (bool, error) {
	var n int
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx,
		"SELECT COUNT(1) FROM effect_log WHERE key = ?", key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check effect: %w", err)
	}
	return n > 0, nil
}

// RecordEffect marks an effect key as applied
func (r *EmployeeRepository) RecordEffect(ctx context.Context, log *entity.EffectLog) error {
	query := `
		INSERT INTO effect_log (key, tenant_id, record_id, effect, applied_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		log.Key,
		log.TenantID,
		log.RecordID,
		log.Effect,
		log.AppliedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record effect", zap.String("key", log.Key), zap.Error(err))
		return fmt.Errorf("failed to record effect: %w", err)
	}

	return nil
}

// Verify interface compliance
var (
	_ port.ExitStatusRepository  = (*EmployeeRepository)(nil)
	_ port.PayrollSyncRepository = (*EmployeeRepository)(nil)
	_ port.LetterRepository      = (*EmployeeRepository)(nil)
	_ port.ProfileRepository     = (*EmployeeRepository)(nil)
	_ port.EffectLogRepository   = (*EmployeeRepository)(nil)
)
