package dto

import (
	"time"

	"github.com/seaboundhq/seabound/internal/entity"
)

// InboundMessageResponse represents a mailbox record as exposed via
// transport layers.
type InboundMessageResponse struct {
	ID            int64     `json:"id"`
	MessageID     string    `json:"message_id"`
	SenderAddress string    `json:"sender_address"`
	SenderName    string    `json:"sender_name,omitempty"`
	Recipient     string    `json:"recipient,omitempty"`
	Subject       string    `json:"subject"`
	ReceivedAt    time.Time `json:"received_at"`
	HasAttachment bool      `json:"has_attachment"`
	DetectedStage *int      `json:"detected_stage,omitempty"`
	Summary       string    `json:"summary,omitempty"`
}

// FromInboundMessage maps a mailbox record onto its transport form.
func FromInboundMessage(msg *entity.InboundMessage) InboundMessageResponse {
	return InboundMessageResponse{
		ID:            msg.ID,
		MessageID:     msg.MessageID,
		SenderAddress: msg.SenderAddress,
		SenderName:    msg.SenderName,
		Recipient:     msg.Recipient,
		Subject:       msg.Subject,
		ReceivedAt:    msg.ReceivedAt,
		HasAttachment: msg.HasAttachment,
		DetectedStage: msg.DetectedStage,
		Summary:       msg.Summary,
	}
}
