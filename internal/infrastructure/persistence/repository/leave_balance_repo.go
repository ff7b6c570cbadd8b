package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// LeaveBalanceRepository implements port.LeaveBalanceRepository
type LeaveBalanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLeaveBalanceRepository creates a new leave balance repository
func NewLeaveBalanceRepository(db *sql.DB, logger *zap.Logger) port.LeaveBalanceRepository {
	return &LeaveBalanceRepository{
		db:     db,
		logger: logger,
	}
}

// GetBalance returns one leave balance
func (r *LeaveBalanceRepository) GetBalance(ctx context.Context, tenantID, employeeID, leaveType string) (*entity.EmployeeLeaveBalance, error) {
	query := `
		SELECT tenant_id, employee_id, leave_type, current_balance, updated_at
		FROM leave_balances
		WHERE tenant_id = ? AND employee_id = ? AND leave_type = ?
	`

	var b entity.EmployeeLeaveBalance
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, tenantID, employeeID, leaveType).Scan(
		&b.TenantID,
		&b.EmployeeID,
		&b.LeaveType,
		&b.CurrentBalance,
		&b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s balance of %s", workflow.ErrNotFound, leaveType, employeeID)
	}
	if err != nil {
		r.logger.Error("Failed to get leave balance",
			zap.String("employee_id", employeeID),
			zap.String("leave_type", leaveType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get leave balance: %w", err)
	}

	return &b, nil
}

// ListBalances returns every leave balance of an employee
func (r *LeaveBalanceRepository) ListBalances(ctx context.Context, tenantID, employeeID string) ([]*entity.EmployeeLeaveBalance, error) {
	query := `
		SELECT tenant_id, employee_id, leave_type, current_balance, updated_at
		FROM leave_balances
		WHERE tenant_id = ? AND employee_id = ?
		ORDER BY leave_type ASC
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, tenantID, employeeID)
	if err != nil {
		r.logger.Error("Failed to list leave balances", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list leave balances: %w", err)
	}
	defer rows.Close()

	var balances []*entity.EmployeeLeaveBalance
	for rows.Next() {
		var b entity.EmployeeLeaveBalance
		if err := rows.Scan(&b.TenantID, &b.EmployeeID, &b.LeaveType, &b.CurrentBalance, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leave balance: %w", err)
		}
		balances = append(balances, &b)
	}

	return balances, rows.Err()
}

// UpsertBalance writes a leave balance
func (r *LeaveBalanceRepository) UpsertBalance(ctx context.Context, balance *entity.EmployeeLeaveBalance) error {
	query := `
		INSERT INTO leave_balances (tenant_id, employee_id, leave_type, current_balance, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, employee_id, leave_type) DO UPDATE SET
			current_balance = excluded.current_balance,
			updated_at = excluded.updated_at
	`

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		balance.TenantID,
		balance.EmployeeID,
		balance.LeaveType,
		balance.CurrentBalance.String(),
		balance.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert leave balance", zap.String("employee_id", balance.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to upsert leave balance: %w", err)
	}

	return nil
}

// AppendChange adds a change log entry
func (r *LeaveBalanceRepository) AppendChange(ctx context.Context, change *entity.LeaveBalanceChangeLog) error {
	query := `
		INSERT INTO leave_balance_changes (
			id, tenant_id, employee_id, leave_type, delta, balance_after,
			record_id, reason, created_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		change.ID,
		change.TenantID,
		change.EmployeeID,
		change.LeaveType,
		change.Delta.String(),
		change.BalanceAfter.String(),
		change.RecordID,
		change.Reason,
		change.CreatedAt,
		change.CreatedBy,
	)
	if err != nil {
		r.logger.Error("Failed to append leave change", zap.String("employee_id", change.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to append leave change: %w", err)
	}

	return nil
}

// ListChanges returns the change log of an employee, oldest first
func (r *LeaveBalanceRepository) ListChanges(ctx context.Context, tenantID, employeeID string) ([]*entity.LeaveBalanceChangeLog, error) {
	query := `
		SELECT id, tenant_id, employee_id, leave_type, delta, balance_after,
			record_id, reason, created_at, created_by
		FROM leave_balance_changes
		WHERE tenant_id = ? AND employee_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, tenantID, employeeID)
	if err != nil {
		r.logger.Error("Failed to list leave changes", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list leave changes: %w", err)
	}
	defer rows.Close()

	var changes []*entity.LeaveBalanceChangeLog
	for rows.Next() {
		var c entity.LeaveBalanceChangeLog
		err := rows.Scan(
			&c.ID,
			&c.TenantID,
			&c.EmployeeID,
			&c.LeaveType,
			&c.Delta,
			&c.BalanceAfter,
			&c.RecordID,
			&c.Reason,
			&c.CreatedAt,
			&c.CreatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave change: %w", err)
		}
		changes = append(changes, &c)
	}

	return changes, rows.Err()
}

// Verify interface compliance
var _ port.LeaveBalanceRepository = (*LeaveBalanceRepository)(nil)
