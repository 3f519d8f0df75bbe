package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// InboundMessage is a raw mailbox record produced by the mail-sync
// collaborator. The engine never fetches mail itself; it only (re)associates
// these records with orders.
type InboundMessage struct {
	bun.BaseModel `bun:"table:inbound_messages"`

	ID            int64     `bun:"id,pk,autoincrement"`
	OrgID         int64     `bun:"org_id"`
	MessageID     string    `bun:"message_id"`
	SenderAddress string    `bun:"sender_address"`
	SenderName    string    `bun:"sender_name"`
	Recipient     string    `bun:"recipient"`
	Subject       string    `bun:"subject"`
	Body          string    `bun:"body"`
	ReceivedAt    time.Time `bun:"received_at"`
	HasAttachment bool      `bun:"has_attachment"`

	// Automatic match fields written by mail-sync.
	DetectedOrderID *int64 `bun:"detected_order_id,nullzero"`
	DetectedStage   *int   `bun:"detected_stage,nullzero"`
	Summary         string `bun:"summary"`
	AutoAdvanced    bool   `bun:"auto_advanced"`

	// Manual link fields written by the association service.
	LinkedOrderID *int64     `bun:"linked_order_id,nullzero"`
	LinkNote      string     `bun:"link_note"`
	LinkedAt      *time.Time `bun:"linked_at,nullzero"`
}

// Matched reports whether the message is bound to an order, either by the
// automatic matcher or by a manual link.
func (m *InboundMessage) Matched() bool {
	return m.DetectedOrderID != nil || m.LinkedOrderID != nil
}

// LedgerStage resolves the stage a synthesized ledger entry should target:
// the detected stage when present and valid, else stage 1.
func (m *InboundMessage) LedgerStage() int {
	if m.DetectedStage != nil && StageValid(*m.DetectedStage) {
		return *m.DetectedStage
	}
	return StageMin
}
