package service

import (
	"context"
	"fmt"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// LeaveBalances is the balance sheet of one employee
type LeaveBalances struct {
	EmployeeID string                          `json:"employee_id"`
	Balances   []*entity.EmployeeLeaveBalance  `json:"balances"`
	Changes    []*entity.LeaveBalanceChangeLog `json:"changes"`
}

// LeaveService reads leave balances
type LeaveService interface {
	Balances(ctx context.Context, actor domainwf.Actor, employeeID string) (*LeaveBalances, error)
}

type leaveServiceImpl struct {
	balances port.LeaveBalanceRepository
	logger   Logger
}

// NewLeaveService creates a new LeaveService
func NewLeaveService(balances port.LeaveBalanceRepository, logger Logger) LeaveService {
	return &leaveServiceImpl{balances: balances, logger: logger}
}

// Balances returns the balances and change log of an employee. Employees and
// managers see their own; company and super admins see the whole tenant.
func (s *leaveServiceImpl) Balances(ctx context.Context, actor domainwf.Actor, employeeID string) (*LeaveBalances, error) {
	if actor.TenantID == "" || actor.UserID == "" || !actor.Role.IsValid() {
		return nil, fmt.Errorf("%w: incomplete actor", domainwf.ErrUnauthorizedActor)
	}
	if actor.UserID != employeeID && !actor.Role.SeesTenant() {
		return nil, fmt.Errorf("%w: %s may not read balances of %s", domainwf.ErrUnauthorizedActor, actor.UserID, employeeID)
	}

	balances, err := s.balances.ListBalances(ctx, actor.TenantID, employeeID)
	if err != nil {
		s.logger.Error("Failed to list leave balances", "error", err, "employee_id", employeeID)
		return nil, fmt.Errorf("list balances: %w", err)
	}
	changes, err := s.balances.ListChanges(ctx, actor.TenantID, employeeID)
	if err != nil {
		s.logger.Error("Failed to list leave balance changes", "error", err, "employee_id", employeeID)
		return nil, fmt.Errorf("list balance changes: %w", err)
	}

	return &LeaveBalances{
		EmployeeID: employeeID,
		Balances:   balances,
		Changes:    changes,
	}, nil
}
