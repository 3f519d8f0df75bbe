package order

import "time"

// Event types emitted on the orders lifecycle topic.
const (
	EventCreated      = "order.created"
	EventStageChanged = "order.stage_changed"
	EventAmended      = "order.amended"
	EventDeleted      = "order.deleted"
	EventRestored     = "order.restored"
)

// Event is the envelope published for every order lifecycle change.
type Event struct {
	Type          string    `json:"type"`
	OrgID         int64     `json:"org_id"`
	Number        string    `json:"number"`
	Stage         int       `json:"stage,omitempty"`
	PreviousStage int       `json:"previous_stage,omitempty"`
	At            time.Time `json:"at"`
}
