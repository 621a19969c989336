package models

import "time"

// ActionStatus is the lifecycle state of a helpdesk action.
type ActionStatus string

const (
	StatusNotYet     ActionStatus = "Not Yet"
	StatusInProgress ActionStatus = "In Progress"
	StatusDone       ActionStatus = "Done"
)

// Valid reports whether s is a known status.
func (s ActionStatus) Valid() bool {
	switch s {
	case StatusNotYet, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// DefaultActionText fills the free-text fields a requester leaves empty.
const DefaultActionText = "-"

// HDAction is a helpdesk ticket owned by the user identified by NPK.
// ID has the form HDREQ-<npk>-<YYYYMMDD>-<seq>.
type HDAction struct {
	ID        string       `json:"id"`
	NPK       string       `json:"npk"`
	UserID    string       `json:"userId"`
	Request   string       `json:"request"`
	Reason    string       `json:"reason"`
	Action    string       `json:"action"`
	RootCause string       `json:"rootCause"`
	Status    ActionStatus `json:"status"`
	DoneDate  *time.Time   `json:"doneDate"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	// OwnerRole is filled only on admin listings.
	OwnerRole Role `json:"ownerRole,omitempty"`
}

// HDActionInput is the writable part of a helpdesk action as received from a
// client. Empty strings mean "not provided".
type HDActionInput struct {
	NPK       string       `json:"npk"`
	Request   string       `json:"request"`
	Reason    string       `json:"reason"`
	Action    string       `json:"action"`
	RootCause string       `json:"rootCause"`
	Status    ActionStatus `json:"status"`
	DoneDate  *time.Time   `json:"doneDate"`
}

// ActionEvent is published to the broker whenever the status of a helpdesk
// action changes.
type ActionEvent struct {
	ActionID  string       `json:"action_id"`
	NPK       string       `json:"npk"`
	Request   string       `json:"request"`
	OldStatus ActionStatus `json:"old_status"`
	NewStatus ActionStatus `json:"new_status"`
	ChangedAt time.Time    `json:"changed_at"`
}
