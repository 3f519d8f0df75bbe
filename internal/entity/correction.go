package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// CorrectionRemoved is the sentinel target recorded when a ledger entry was
// removed outright rather than moved to another order.
const CorrectionRemoved = "REMOVED"

// Correction is the side-channel audit record written whenever a human
// overrides a message-to-order association. It is keyed by the original
// message's subject and sender so a future re-sync pass can avoid reapplying
// an association that was already corrected. It is never read back into the
// order aggregate.
type Correction struct {
	bun.BaseModel `bun:"table:corrections"`

	ID        int64     `bun:"id,pk,autoincrement"`
	OrgID     int64     `bun:"org_id"`
	Subject   string    `bun:"subject"`
	Sender    string    `bun:"sender"`
	Target    string    `bun:"target"`
	Note      string    `bun:"note"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// POSequence is the transactional counter backing PO number allocation.
// One row per (org, scope code); the generic sequence uses an empty code.
type POSequence struct {
	bun.BaseModel `bun:"table:po_sequences"`

	ID    int64  `bun:"id,pk,autoincrement"`
	OrgID int64  `bun:"org_id"`
	Code  string `bun:"code"`
	Seq   int64  `bun:"seq"`
}
