package workflow

// Status is the lifecycle status of a workflow record
type Status string

const (
	StatusDraft           Status = "Draft"
	StatusSubmitted       Status = "Submitted"
	StatusPending         Status = "Pending"
	StatusManagerApproved Status = "Manager Approved"
	StatusManagerRejected Status = "Manager Rejected"
	StatusManagerReviewed Status = "Manager Reviewed"
	StatusHRApproved      Status = "HR Approved"
	StatusHRRejected      Status = "HR Rejected"
	StatusApproved        Status = "Approved"
	StatusRejected        Status = "Rejected"
	StatusCancelled       Status = "Cancelled"
	StatusPaid            Status = "Paid"
	StatusOnHold          Status = "On Hold"
	StatusUnderReview     Status = "Under Review"
	StatusFinalised       Status = "Finalised"
	StatusConfirmed       Status = "Confirmed"
	StatusInvited         Status = "Invited"
	StatusStarted         Status = "Started"
	StatusDeclined        Status = "Declined"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Stage is the review stage of a staged workflow. Unstaged workflows use StageNone.
type Stage string

const (
	StageNone               Stage = ""
	StageDraft              Stage = "Draft"
	StageManagerReview      Stage = "Manager Review"
	StageHRReview           Stage = "HR Review"
	StageManagementApproval Stage = "Management Approval"
	StageClosed             Stage = "Closed"
)

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// State is the position of a record in its workflow
type State struct {
	Stage  Stage  `json:"stage,omitempty"`
	Status Status `json:"status"`
}

// At builds an unstaged state
func At(status Status) State {
	return State{Status: status}
}

// AtStage builds a staged state
func AtStage(stage Stage, status Status) State {
	return State{Stage: stage, Status: status}
}

func (s State) String() string {
	if s.Stage == StageNone {
		return string(s.Status)
	}
	return string(s.Stage) + "/" + string(s.Status)
}
