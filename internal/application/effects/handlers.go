package effects

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// markExitEligible opens the exit path of an employee whose resignation HR approved
func (a *Applier) markExitEligible(ctx context.Context, evt *event.Event) error {
	rec := evt.Record

	var payload entity.ResignationPayload
	if err := entity.DecodePayload(rec.Payload, &payload); err != nil {
		return err
	}

	status, err := a.exitStatus(ctx, rec.TenantID, rec.SubjectID)
	if err != nil {
		return err
	}
	status.ResignationID = rec.ID
	status.LastWorkingDay = payload.LastWorkingDay
	status.ExitEligible = true
	status.UpdatedAt = a.now().UTC()

	return a.store.ExitStatuses().UpsertExitStatus(ctx, status)
}

// markExitCompleted closes the exit path once the settlement is finalised
func (a *Applier) markExitCompleted(ctx context.Context, evt *event.Event) error {
	rec := evt.Record

	status, err := a.exitStatus(ctx, rec.TenantID, rec.SubjectID)
	if err != nil {
		return err
	}
	status.SettlementID = rec.ID
	status.ExitCompleted = true
	status.UpdatedAt = a.now().UTC()

	return a.store.ExitStatuses().UpsertExitStatus(ctx, status)
}

func (a *Applier) exitStatus(ctx context.Context, tenantID, employeeID string) (*entity.ExitStatus, error) {
	status, err := a.store.ExitStatuses().GetExitStatus(ctx, tenantID, employeeID)
	if isNotFound(err) {
		return &entity.ExitStatus{TenantID: tenantID, EmployeeID: employeeID}, nil
	}
	return status, err
}

// debitLeave takes the approved days off the balance of the leave type.
// A missing balance starts at zero.
func (a *Applier) debitLeave(ctx context.Context, evt *event.Event) error {
	rec := evt.Record

	var payload entity.LeavePayload
	if err := entity.DecodePayload(rec.Payload, &payload); err != nil {
		return err
	}
	if payload.LeaveType == "" || !payload.Days.IsPositive() {
		return fmt.Errorf("%w: leave %s has no type or days", workflow.ErrValidation, rec.ID)
	}

	now := a.now().UTC()
	balance, err := a.store.LeaveBalances().GetBalance(ctx, rec.TenantID, rec.SubjectID, payload.LeaveType)
	if isNotFound(err) {
		balance = &entity.EmployeeLeaveBalance{
			TenantID:       rec.TenantID,
			EmployeeID:     rec.SubjectID,
			LeaveType:      payload.LeaveType,
			CurrentBalance: decimal.Zero,
		}
	} else if err != nil {
		return err
	}

	balance.CurrentBalance = balance.CurrentBalance.Sub(payload.Days)
	balance.UpdatedAt = now
	if err := a.store.LeaveBalances().UpsertBalance(ctx, balance); err != nil {
		return err
	}

	return a.store.LeaveBalances().AppendChange(ctx, &entity.LeaveBalanceChangeLog{
		ID:           uuid.NewString(),
		TenantID:     rec.TenantID,
		EmployeeID:   rec.SubjectID,
		LeaveType:    payload.LeaveType,
		Delta:        payload.Days.Neg(),
		BalanceAfter: balance.CurrentBalance,
		RecordID:     rec.ID,
		Reason:       fmt.Sprintf("leave %s to %s approved", payload.StartDate, payload.EndDate),
		CreatedAt:    now,
		CreatedBy:    evt.Actor.UserID,
	})
}

// queueExpensePayout flags payroll so the reimbursement is paid in the next run
func (a *Applier) queueExpensePayout(ctx context.Context, evt *event.Event) error {
	return a.queuePayroll(ctx, evt, "expense claim approved")
}

// queueRevision flags payroll for the approved salary revision
func (a *Applier) queueRevision(ctx context.Context, evt *event.Event) error {
	if evt.To.Stage != workflow.StageManagementApproval {
		return nil
	}
	return a.queuePayroll(ctx, evt, "salary revision approved")
}

func (a *Applier) queuePayroll(ctx context.Context, evt *event.Event, reason string) error {
	rec := evt.Record
	return a.store.PayrollSyncs().UpsertPayrollSync(ctx, &entity.PayrollSync{
		TenantID:       rec.TenantID,
		EmployeeID:     rec.SubjectID,
		Status:         entity.PayrollSyncPending,
		Reason:         reason,
		SourceRecordID: rec.ID,
		UpdatedAt:      a.now().UTC(),
	})
}

// unlockLetter lets HR issue the letter of a proposal approved by management.
// Closing an approved proposal keeps its status, so only the approval itself counts.
func (a *Applier) unlockLetter(ctx context.Context, evt *event.Event) error {
	if evt.To.Stage != workflow.StageManagementApproval {
		return nil
	}
	rec := evt.Record

	letter, err := a.store.Letters().GetLetter(ctx, rec.TenantID, rec.ID)
	if isNotFound(err) {
		letter = &entity.LetterGrant{
			TenantID:   rec.TenantID,
			ProposalID: rec.ID,
			EmployeeID: rec.SubjectID,
		}
	} else if err != nil {
		return err
	}

	letter.Unlocked = true
	letter.UpdatedAt = a.now().UTC()
	return a.store.Letters().UpsertLetter(ctx, letter)
}

// applyProfile merges the approved changes into the employee profile
func (a *Applier) applyProfile(ctx context.Context, evt *event.Event) error {
	rec := evt.Record

	var payload entity.ProfileChangePayload
	if err := entity.DecodePayload(rec.Payload, &payload); err != nil {
		return err
	}

	profile, err := a.store.Profiles().GetProfile(ctx, rec.TenantID, rec.SubjectID)
	if isNotFound(err) {
		profile = &entity.EmployeeProfile{
			TenantID:   rec.TenantID,
			EmployeeID: rec.SubjectID,
		}
	} else if err != nil {
		return err
	}
	if profile.Fields == nil {
		profile.Fields = make(map[string]string)
	}

	for field, value := range payload.Changes {
		profile.Fields[field] = value
	}
	profile.UpdatedAt = a.now().UTC()
	profile.UpdatedBy = evt.Actor.UserID

	return a.store.Profiles().UpsertProfile(ctx, profile)
}

// archiveStatement stores the statement of a finalised settlement
func (a *Applier) archiveStatement(ctx context.Context, evt *event.Event) error {
	rec := evt.Record

	var settlement entity.SettlementPayload
	if err := entity.DecodePayload(rec.Payload, &settlement); err != nil {
		return err
	}

	content, err := a.exporter.ExportSettlement(rec, &settlement)
	if err != nil {
		return fmt.Errorf("failed to export statement: %w", err)
	}

	return a.storage.Save(ctx, rec.TenantID, StatementPath(rec.ID), content)
}

// StatementPath is where the archived statement of a settlement lives
func StatementPath(settlementID string) string {
	return "settlements/" + settlementID + ".xlsx"
}
