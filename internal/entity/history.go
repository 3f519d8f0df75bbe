package entity

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// AmendedMarker is the literal carried in the subject of every amendment
// ledger entry.
const AmendedMarker = "AMENDED"

// SystemSender attributes synthetic ledger entries (stage transitions,
// amendments) to the engine rather than a mailbox participant.
const SystemSender = "system"

// HistoryEntry is one communication or audit event on an order's ledger.
// The stage is the stage the entry pertains to, which is not necessarily the
// order's current stage.
type HistoryEntry struct {
	bun.BaseModel `bun:"table:history_entries"`

	ID             int64          `bun:"id,pk,autoincrement"`
	OrderID        int64          `bun:"order_id"`
	Stage          int            `bun:"stage"`
	OccurredAt     time.Time      `bun:"occurred_at"`
	Sender         string         `bun:"sender"`
	Recipient      string         `bun:"recipient"`
	Subject        string         `bun:"subject"`
	Body           string         `bun:"body"`
	HasAttachment  bool           `bun:"has_attachment"`
	Attachments    AttachmentList `bun:"attachments"`
	IdempotencyKey string         `bun:"idempotency_key"`
}

// Attachment is one file referenced by a history entry, optionally carrying
// structured metadata.
type Attachment struct {
	Filename string          `json:"filename"`
	Meta     *AttachmentMeta `json:"meta,omitempty"`
}

// AttachmentMeta is the structured payload an attachment may carry: a stored
// document reference and/or a line item snapshot.
type AttachmentMeta struct {
	DocumentURL string             `json:"document_url,omitempty"`
	Items       []LineItemSnapshot `json:"items,omitempty"`
	Extra       map[string]string  `json:"extra,omitempty"`
}

// AttachmentList stores attachments as a JSON column so the shape can evolve
// without migrations.
type AttachmentList []Attachment

var (
	_ driver.Valuer = (AttachmentList)(nil)
	_ sql.Scanner   = (*AttachmentList)(nil)
)

// Value implements driver.Valuer.
func (l AttachmentList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *AttachmentList) Scan(src any) error {
	return scanJSON(src, l)
}

// Metadata is an opaque string map stored as JSON on the order (for example
// the generated-document URL).
type Metadata map[string]string

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	return scanJSON(src, m)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column source %T", src)
	}
}
