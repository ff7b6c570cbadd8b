package workflow

import (
	"context"
	"errors"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// DefaultRegistry returns the registry of every HR workflow
func DefaultRegistry() *domainwf.Registry {
	return domainwf.NewRegistry(
		BuildResignation(),
		BuildLeave(),
		BuildExpense(),
		BuildProposal(),
		BuildSettlement(),
		BuildAppraisal(),
		BuildProfileChange(),
		BuildRaterAssignment(),
	)
}

var (
	draft           = domainwf.At(domainwf.StatusDraft)
	submitted       = domainwf.At(domainwf.StatusSubmitted)
	pending         = domainwf.At(domainwf.StatusPending)
	managerApproved = domainwf.At(domainwf.StatusManagerApproved)
	managerRejected = domainwf.At(domainwf.StatusManagerRejected)
	hrApproved      = domainwf.At(domainwf.StatusHRApproved)
	hrRejected      = domainwf.At(domainwf.StatusHRRejected)
	approved        = domainwf.At(domainwf.StatusApproved)
	rejected        = domainwf.At(domainwf.StatusRejected)
)

// BuildResignation creates the resignation workflow.
// A subject may file again only after a rejection.
func BuildResignation() *domainwf.Definition {
	b := domainwf.NewBuilder(domainwf.TypeResignation).
		Statuses(
			domainwf.StatusDraft,
			domainwf.StatusSubmitted,
			domainwf.StatusManagerApproved,
			domainwf.StatusManagerRejected,
			domainwf.StatusHRApproved,
			domainwf.StatusHRRejected,
		).
		Initial(draft).
		Terminal(hrApproved, managerRejected, hrRejected).
		OwnerCreates().
		SingleActive(managerRejected, hrRejected).
		EditableIn(draft, true)

	b.Configure(draft).
		PermitOwnerIf(domainwf.ActionSubmit, submitted, requireResignationDetails)

	b.Configure(submitted).
		Permit(domainwf.ActionManagerApprove, managerApproved, domainwf.RoleManager).
		Permit(domainwf.ActionManagerReject, managerRejected, domainwf.RoleManager)

	b.Configure(managerApproved).
		Permit(domainwf.ActionHRApprove, hrApproved, domainwf.RoleCompanyAdmin).
		Permit(domainwf.ActionHRReject, hrRejected, domainwf.RoleCompanyAdmin)

	return b.Build()
}

// BuildLeave creates the leave request workflow
func BuildLeave() *domainwf.Definition {
	cancelled := domainwf.At(domainwf.StatusCancelled)

	b := domainwf.NewBuilder(domainwf.TypeLeave).
		Statuses(
			domainwf.StatusDraft,
			domainwf.StatusSubmitted,
			domainwf.StatusManagerApproved,
			domainwf.StatusApproved,
			domainwf.StatusRejected,
			domainwf.StatusCancelled,
		).
		Initial(draft).
		Terminal(approved, rejected, cancelled).
		OwnerCreates().
		EditableIn(draft, true)

	b.Configure(draft).
		PermitOwnerIf(domainwf.ActionSubmit, submitted, requireLeaveDays).
		PermitOwner(domainwf.ActionCancel, cancelled)

	b.Configure(submitted).
		Permit(domainwf.ActionManagerApprove, managerApproved, domainwf.RoleManager).
		Permit(domainwf.ActionReject, rejected, domainwf.RoleManager).
		PermitOwner(domainwf.ActionCancel, cancelled)

	b.Configure(managerApproved).
		Permit(domainwf.ActionApprove, approved, domainwf.RoleCompanyAdmin).
		Permit(domainwf.ActionReject, rejected, domainwf.RoleCompanyAdmin)

	return b.Build()
}

// BuildExpense creates the expense claim workflow
func BuildExpense() *domainwf.Definition {
	paid := domainwf.At(domainwf.StatusPaid)

	b := domainwf.NewBuilder(domainwf.TypeExpense).
		Statuses(
			domainwf.StatusDraft,
			domainwf.StatusSubmitted,
			domainwf.StatusManagerApproved,
			domainwf.StatusHRApproved,
			domainwf.StatusPaid,
			domainwf.StatusRejected,
		).
		Initial(draft).
		Terminal(paid, rejected).
		OwnerCreates().
		EditableIn(draft, true)

	b.Configure(draft).
		PermitOwnerIf(domainwf.ActionSubmit, submitted, requirePositiveAmount)

	b.Configure(submitted).
		Permit(domainwf.ActionManagerApprove, managerApproved, domainwf.RoleManager).
		Permit(domainwf.ActionReject, rejected, domainwf.RoleManager)

	b.Configure(managerApproved).
		Permit(domainwf.ActionHRApprove, hrApproved, domainwf.RoleCompanyAdmin).
		Permit(domainwf.ActionReject, rejected, domainwf.RoleCompanyAdmin)

	b.Configure(hrApproved).
		Permit(domainwf.ActionMarkPaid, paid, domainwf.RoleCompanyAdmin)

	return b.Build()
}

// BuildProposal creates the increment/promotion proposal workflow.
// Every review stage can hold, resume or reject; closing needs the issued letter.
func BuildProposal() *domainwf.Definition {
	b := domainwf.NewBuilder(domainwf.TypeProposal).
		Stages(
			domainwf.StageDraft,
			domainwf.StageManagerReview,
			domainwf.StageHRReview,
			domainwf.StageManagementApproval,
			domainwf.StageClosed,
		).
		Statuses(
			domainwf.StatusDraft,
			domainwf.StatusSubmitted,
			domainwf.StatusApproved,
			domainwf.StatusRejected,
			domainwf.StatusOnHold,
		).
		Initial(domainwf.AtStage(domainwf.StageDraft, domainwf.StatusDraft)).
		Terminal(
			domainwf.AtStage(domainwf.StageClosed, domainwf.StatusRejected),
			domainwf.AtStage(domainwf.StageClosed, domainwf.StatusApproved),
		).
		CreatedBy(domainwf.RoleManager, domainwf.RoleCompanyAdmin).
		EditableIn(domainwf.AtStage(domainwf.StageDraft, domainwf.StatusDraft), false, domainwf.RoleManager, domainwf.RoleCompanyAdmin).
		EditableIn(domainwf.AtStage(domainwf.StageHRReview, domainwf.StatusSubmitted), false, domainwf.RoleCompanyAdmin).
		EditableIn(domainwf.AtStage(domainwf.StageHRReview, domainwf.StatusOnHold), false, domainwf.RoleCompanyAdmin).
		Protect(entity.FieldLetterIssued)

	closedRejected := domainwf.AtStage(domainwf.StageClosed, domainwf.StatusRejected)

	b.Configure(domainwf.AtStage(domainwf.StageDraft, domainwf.StatusDraft)).
		PermitIf(domainwf.ActionSubmit, domainwf.AtStage(domainwf.StageManagerReview, domainwf.StatusSubmitted),
			requireProposedCTC, domainwf.RoleManager, domainwf.RoleCompanyAdmin)

	reviews := []struct {
		stage domainwf.Stage
		next  domainwf.Stage
		role  domainwf.Role
	}{
		{domainwf.StageManagerReview, domainwf.StageHRReview, domainwf.RoleManager},
		{domainwf.StageHRReview, domainwf.StageManagementApproval, domainwf.RoleCompanyAdmin},
		{domainwf.StageManagementApproval, "", domainwf.RoleSuperAdmin},
	}
	for _, r := range reviews {
		active := domainwf.AtStage(r.stage, domainwf.StatusSubmitted)
		held := domainwf.AtStage(r.stage, domainwf.StatusOnHold)

		cfg := b.Configure(active).
			Permit(domainwf.ActionHold, held, r.role).
			Permit(domainwf.ActionReject, closedRejected, r.role)
		if r.next != "" {
			cfg.Permit(domainwf.ActionForward, domainwf.AtStage(r.next, domainwf.StatusSubmitted), r.role)
		} else {
			cfg.Permit(domainwf.ActionApprove, domainwf.AtStage(r.stage, domainwf.StatusApproved), r.role)
		}

		b.Configure(held).
			Permit(domainwf.ActionResume, active, r.role).
			Permit(domainwf.ActionReject, closedRejected, r.role)
	}

	b.Configure(domainwf.AtStage(domainwf.StageManagementApproval, domainwf.StatusApproved)).
		PermitIf(domainwf.ActionCloseProposal, domainwf.AtStage(domainwf.StageClosed, domainwf.StatusApproved),
			requireLetterIssued, domainwf.RoleCompanyAdmin)

	return b.Build()
}

// BuildSettlement creates the full and final settlement workflow. One per employee.
func BuildSettlement() *domainwf.Definition {
	underReview := domainwf.At(domainwf.StatusUnderReview)
	finalised := domainwf.At(domainwf.StatusFinalised)

	b := domainwf.NewBuilder(domainwf.TypeSettlement).
		Statuses(domainwf.StatusDraft, domainwf.StatusUnderReview, domainwf.StatusFinalised).
		Initial(draft).
		Terminal(finalised).
		CreatedBy(domainwf.RoleCompanyAdmin, domainwf.RoleSuperAdmin).
		SingleActive().
		EditableIn(draft, false, domainwf.RoleCompanyAdmin, domainwf.RoleSuperAdmin).
		EditableIn(underReview, false, domainwf.RoleCompanyAdmin, domainwf.RoleSuperAdmin).
		Protect(entity.FieldComponents, entity.FieldTotalEarnings, entity.FieldTotalDeductions, entity.FieldNetPayable).
		SeededOnCreate(entity.FieldComponents)

	b.Configure(draft).
		PermitIf(domainwf.ActionSubmitReview, underReview, requireComponents, domainwf.RoleCompanyAdmin)

	b.Configure(underReview).
		Permit(domainwf.ActionSendBack, draft, domainwf.RoleCompanyAdmin).
		Permit(domainwf.ActionFinalise, finalised, domainwf.RoleCompanyAdmin, domainwf.RoleSuperAdmin)

	return b.Build()
}

// BuildAppraisal creates the appraisal workflow
func BuildAppraisal() *domainwf.Definition {
	reviewed := domainwf.At(domainwf.StatusManagerReviewed)
	confirmed := domainwf.At(domainwf.StatusConfirmed)

	b := domainwf.NewBuilder(domainwf.TypeAppraisal).
		Statuses(domainwf.StatusDraft, domainwf.StatusSubmitted, domainwf.StatusManagerReviewed, domainwf.StatusConfirmed).
		Initial(draft).
		Terminal(confirmed).
		OwnerCreates().
		EditableIn(draft, true).
		EditableIn(submitted, false, domainwf.RoleManager)

	b.Configure(draft).
		PermitOwner(domainwf.ActionSubmit, submitted)

	b.Configure(submitted).
		Permit(domainwf.ActionManagerReview, reviewed, domainwf.RoleManager)

	b.Configure(reviewed).
		Permit(domainwf.ActionConfirm, confirmed, domainwf.RoleCompanyAdmin).
		Permit(domainwf.ActionSendBack, submitted, domainwf.RoleCompanyAdmin)

	return b.Build()
}

// BuildProfileChange creates the employee profile change workflow
func BuildProfileChange() *domainwf.Definition {
	b := domainwf.NewBuilder(domainwf.TypeProfileChange).
		Statuses(domainwf.StatusPending, domainwf.StatusApproved, domainwf.StatusRejected).
		Initial(pending).
		Terminal(approved, rejected).
		OwnerCreates().
		EditableIn(pending, true)

	b.Configure(pending).
		PermitIf(domainwf.ActionApprove, approved, requireProfileChanges, domainwf.RoleCompanyAdmin).
		Permit(domainwf.ActionReject, rejected, domainwf.RoleCompanyAdmin)

	return b.Build()
}

// BuildRaterAssignment creates the 360 feedback rater assignment workflow.
// The subject of an assignment is the rater.
func BuildRaterAssignment() *domainwf.Definition {
	invited := domainwf.At(domainwf.StatusInvited)
	started := domainwf.At(domainwf.StatusStarted)
	declined := domainwf.At(domainwf.StatusDeclined)

	b := domainwf.NewBuilder(domainwf.TypeRaterAssignment).
		Statuses(domainwf.StatusPending, domainwf.StatusInvited, domainwf.StatusStarted, domainwf.StatusSubmitted, domainwf.StatusDeclined).
		Initial(pending).
		Terminal(submitted, declined).
		CreatedBy(domainwf.RoleManager, domainwf.RoleCompanyAdmin).
		EditableIn(started, true)

	b.Configure(pending).
		Permit(domainwf.ActionInvite, invited, domainwf.RoleManager, domainwf.RoleCompanyAdmin)

	b.Configure(invited).
		PermitOwner(domainwf.ActionStart, started).
		PermitOwner(domainwf.ActionDecline, declined)

	b.Configure(started).
		PermitOwner(domainwf.ActionSubmit, submitted).
		PermitOwner(domainwf.ActionDecline, declined)

	return b.Build()
}

func requireResignationDetails(ctx context.Context, payload map[string]interface{}) error {
	var p entity.ResignationPayload
	if err := entity.DecodePayload(payload, &p); err != nil {
		return err
	}
	if p.Reason == "" || p.LastWorkingDay == "" {
		return errors.New("reason and lastWorkingDay are required")
	}
	return nil
}

func requireLeaveDays(ctx context.Context, payload map[string]interface{}) error {
	var p entity.LeavePayload
	if err := entity.DecodePayload(payload, &p); err != nil {
		return err
	}
	if p.LeaveType == "" {
		return errors.New("leaveType is required")
	}
	if !p.Days.IsPositive() {
		return errors.New("days must be greater than zero")
	}
	return nil
}

func requirePositiveAmount(ctx context.Context, payload map[string]interface{}) error {
	var p entity.ExpensePayload
	if err := entity.DecodePayload(payload, &p); err != nil {
		return err
	}
	if !p.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func requireProposedCTC(ctx context.Context, payload map[string]interface{}) error {
	var p entity.ProposalPayload
	if err := entity.DecodePayload(payload, &p); err != nil {
		return err
	}
	if p.Kind != entity.ProposalIncrement && p.Kind != entity.ProposalPromotion {
		return errors.New("kind must be Increment or Promotion")
	}
	if !p.ProposedCTC.IsPositive() {
		return errors.New("proposedCtc must be greater than zero")
	}
	return nil
}

func requireLetterIssued(ctx context.Context, payload map[string]interface{}) error {
	if issued, _ := payload[entity.FieldLetterIssued].(bool); !issued {
		return errors.New("letter has not been issued")
	}
	return nil
}

func requireComponents(ctx context.Context, payload map[string]interface{}) error {
	var p entity.SettlementPayload
	if err := entity.DecodePayload(payload, &p); err != nil {
		return err
	}
	if len(p.Components) == 0 {
		return errors.New("settlement has no components")
	}
	return nil
}

func requireProfileChanges(ctx context.Context, payload map[string]interface{}) error {
	var p entity.ProfileChangePayload
	if err := entity.DecodePayload(payload, &p); err != nil {
		return err
	}
	if len(p.Changes) == 0 {
		return errors.New("no profile changes requested")
	}
	return nil
}
