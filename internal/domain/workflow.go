package domain

import (
	"time"

	"github.com/google/uuid"
)

type WorkflowAction string

const (
	ActionSubmitted             WorkflowAction = "submitted"
	ActionApproved              WorkflowAction = "approved"
	ActionRejected              WorkflowAction = "rejected"
	ActionModificationRequested WorkflowAction = "modification_requested"
	ActionModified              WorkflowAction = "modified"
	ActionProcessing            WorkflowAction = "processing"
	ActionCompleted             WorkflowAction = "completed"
	ActionFailed                WorkflowAction = "failed"
)

// Workflow departments.
const (
	DepartmentRequester = "Requester"
	DepartmentAdmin     = "Admin"
	DepartmentFinance   = "Finance"
	DepartmentCompleted = "Completed"
)

// WorkflowStep is one immutable audit record of a transition on a request.
type WorkflowStep struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	PaymentID      string         `json:"payment_id" db:"payment_id"`
	Action         WorkflowAction `json:"action" db:"action"`
	FromDepartment string         `json:"from_department" db:"from_department"`
	ToDepartment   string         `json:"to_department" db:"to_department"`
	ProcessedBy    string         `json:"processed_by" db:"processed_by"`
	Reason         *string        `json:"reason,omitempty" db:"reason"`
	Comments       *string        `json:"comments,omitempty" db:"comments"`
	Timestamp      time.Time      `json:"timestamp" db:"timestamp"`
}

// DepartmentFor maps a pending stage to the department that acts next.
func DepartmentFor(s Stage) string {
	switch s {
	case StagePendingAdmin:
		return DepartmentAdmin
	case StagePendingFinance:
		return DepartmentFinance
	case StageModificationRequested, StageRejected:
		return DepartmentRequester
	}
	return DepartmentCompleted
}
