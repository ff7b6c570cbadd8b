package workflow

// Action is a named transition requested by an actor
type Action string

const (
	ActionSubmit         Action = "submit"
	ActionManagerApprove Action = "manager_approve"
	ActionManagerReject  Action = "manager_reject"
	ActionManagerReview  Action = "manager_review"
	ActionHRApprove      Action = "hr_approve"
	ActionHRReject       Action = "hr_reject"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionCancel         Action = "cancel"
	ActionMarkPaid       Action = "mark_paid"
	ActionForward        Action = "forward"
	ActionHold           Action = "hold"
	ActionResume         Action = "resume"
	ActionCloseProposal  Action = "close_proposal"
	ActionSubmitReview   Action = "submit_for_review"
	ActionSendBack       Action = "send_back"
	ActionFinalise       Action = "finalise"
	ActionConfirm        Action = "confirm"
	ActionInvite         Action = "invite"
	ActionStart          Action = "start"
	ActionDecline        Action = "decline"

	// ActionUpdate marks payload edits in the trail; it is never a registry edge.
	ActionUpdate Action = "update"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// Role is the tenant-scoped role of an actor
type Role string

const (
	RoleEmployee     Role = "EMPLOYEE"
	RoleManager      Role = "MANAGER"
	RoleCompanyAdmin Role = "COMPANY_ADMIN"
	RoleSuperAdmin   Role = "SUPER_ADMIN"
)

// IsValid returns true if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleCompanyAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// SeesTenant reports whether the role may read every record of its tenant
func (r Role) SeesTenant() bool {
	return r == RoleCompanyAdmin || r == RoleSuperAdmin
}

// Actor is the authenticated caller of an operation
type Actor struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
}

// Type identifies a workflow definition
type Type string

const (
	TypeResignation     Type = "resignation"
	TypeLeave           Type = "leave_request"
	TypeExpense         Type = "expense_claim"
	TypeProposal        Type = "pi_proposal"
	TypeSettlement      Type = "fnf_settlement"
	TypeAppraisal       Type = "appraisal"
	TypeProfileChange   Type = "profile_change"
	TypeRaterAssignment Type = "rater_assignment"
)

// String returns the string representation of the workflow type
func (t Type) String() string {
	return string(t)
}
