package database

import (
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaboundhq/seabound/internal/testutil"
)

func TestIsMissingColumn(t *testing.T) {
	db := testutil.OpenDB(t)

	_, err := db.Exec(`SELECT no_such FROM orders`)
	require.Error(t, err)
	assert.True(t, IsMissingColumn(err))
	assert.True(t, IsMissingColumn(fmt.Errorf("load: %w", err)))

	_, err = db.Exec(`SELECT id FROM absent_table`)
	require.Error(t, err)
	assert.False(t, IsMissingColumn(err), "missing table is not a missing column")

	assert.True(t, IsMissingColumn(&mysql.MySQLError{Number: 1054}))
	assert.False(t, IsMissingColumn(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsMissingColumn(fmt.Errorf("connection refused")))
	assert.False(t, IsMissingColumn(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	db := testutil.OpenDB(t)

	_, err := db.Exec(`INSERT INTO orders (org_id, number) VALUES (1, 'A')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders (org_id, number) VALUES (1, 'A')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(fmt.Errorf("seed: %w", err)))

	assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsUniqueViolation(&mysql.MySQLError{Number: 1213}))
	assert.False(t, IsUniqueViolation(fmt.Errorf("connection refused")))
	assert.False(t, IsUniqueViolation(nil))
}
