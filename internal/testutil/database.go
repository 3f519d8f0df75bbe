package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const ordersTable = `
CREATE TABLE orders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    org_id INTEGER NOT NULL,
    number TEXT NOT NULL,
    buyer TEXT NOT NULL DEFAULT '',
    supplier TEXT NOT NULL DEFAULT '',
    product TEXT NOT NULL DEFAULT '',
    specs TEXT NOT NULL DEFAULT '',
    origin TEXT NOT NULL DEFAULT '',
    destination TEXT NOT NULL DEFAULT '',
    stage INTEGER NOT NULL DEFAULT 1,
    brand TEXT NOT NULL DEFAULT '',
    pi_number TEXT NOT NULL DEFAULT '',
    awb_number TEXT NOT NULL DEFAULT '',
    total_value REAL NOT NULL DEFAULT 0,
    total_kilos REAL NOT NULL DEFAULT 0,
    artwork_approved INTEGER NOT NULL DEFAULT 0,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    UNIQUE (org_id, number)
)`

const ordersDeletedAt = `ALTER TABLE orders ADD COLUMN deleted_at TIMESTAMP`

const childTables = `
CREATE TABLE line_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id INTEGER NOT NULL,
    product TEXT NOT NULL DEFAULT '',
    brand TEXT NOT NULL DEFAULT '',
    freezing TEXT NOT NULL DEFAULT '',
    size TEXT NOT NULL DEFAULT '',
    glaze TEXT NOT NULL DEFAULT '',
    declared_glaze TEXT NOT NULL DEFAULT '',
    packing TEXT NOT NULL DEFAULT '',
    cases INTEGER NOT NULL DEFAULT 0,
    weight_kg REAL NOT NULL DEFAULT 0,
    price_per_kg REAL NOT NULL DEFAULT 0,
    currency TEXT NOT NULL DEFAULT 'USD',
    total REAL NOT NULL DEFAULT 0
);

CREATE TABLE history_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id INTEGER NOT NULL,
    stage INTEGER NOT NULL DEFAULT 1,
    occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    sender TEXT NOT NULL DEFAULT '',
    recipient TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    has_attachment INTEGER NOT NULL DEFAULT 0,
    attachments TEXT NOT NULL DEFAULT '[]',
    idempotency_key TEXT NOT NULL DEFAULT ''
);

CREATE TABLE inbound_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    org_id INTEGER NOT NULL,
    message_id TEXT NOT NULL,
    sender_address TEXT NOT NULL DEFAULT '',
    sender_name TEXT NOT NULL DEFAULT '',
    recipient TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    received_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    has_attachment INTEGER NOT NULL DEFAULT 0,
    detected_order_id INTEGER,
    detected_stage INTEGER,
    summary TEXT NOT NULL DEFAULT '',
    auto_advanced INTEGER NOT NULL DEFAULT 0,
    linked_order_id INTEGER,
    link_note TEXT NOT NULL DEFAULT '',
    linked_at TIMESTAMP,
    UNIQUE (org_id, message_id)
);

CREATE TABLE corrections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    org_id INTEGER NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    sender TEXT NOT NULL DEFAULT '',
    target TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE po_sequences (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    org_id INTEGER NOT NULL,
    code TEXT NOT NULL,
    seq INTEGER NOT NULL DEFAULT 0,
    UNIQUE (org_id, code)
)`

// OpenDB returns an in-memory bun DB with the full schema applied. The
// connection is closed when the test finishes.
func OpenDB(t *testing.T) *bun.DB {
	t.Helper()

	db := open(t)
	ApplySchema(t, db)

	return db
}

// OpenBareDB returns an in-memory bun DB with no tables yet, for tests that
// control when the schema appears. Apply it later with ApplySchema.
func OpenBareDB(t *testing.T) *bun.DB {
	t.Helper()

	return open(t)
}

// ApplySchema creates the full schema, deleted_at included.
func ApplySchema(t *testing.T, db *bun.DB) {
	t.Helper()

	exec(t, db, ordersTable)
	exec(t, db, ordersDeletedAt)
	exec(t, db, childTables)
}

// OpenLegacyDB returns a DB whose orders table predates the deleted_at
// column, for exercising the hard-delete fallback.
func OpenLegacyDB(t *testing.T) *bun.DB {
	t.Helper()

	db := open(t)
	exec(t, db, ordersTable)
	exec(t, db, childTables)

	return db
}

func open(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// A single connection keeps every statement on the same in-memory
	// database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func exec(t *testing.T, db *bun.DB, ddl string) {
	t.Helper()

	_, err := db.Exec(ddl)
	require.NoError(t, err)
}
