package notifications

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/backend/core/csql"
)

// testDB connects to the database named by the POSTGRES environment
// variable. Database tests are skipped when it is unset.
func testDB(t *testing.T) *csql.DB {
	t.Helper()
	dsn := os.Getenv("POSTGRES")
	if dsn == "" {
		t.Skip("set POSTGRES to run database tests")
	}
	db, err := csql.OpenWithSchema(dsn, os.Getenv("POSTGRES_PASSWORD"), "civicwatch_test_notifications")
	require.NoError(t, err)
	t.Cleanup(func() {
		db.ClearSchema()
		db.Close()
	})
	return db
}

func TestSQLStoreUniquePair(t *testing.T) {
	store, err := NewSQLStore(testDB(t))
	require.NoError(t, err)
	ctx := context.Background()
	account := uuid.NewString()

	exists, err := store.Exists(ctx, account, "apns-token-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Create(ctx, account, "apns-token-1", time.Now().UTC()))

	exists, err = store.Exists(ctx, account, "apns-token-1")
	require.NoError(t, err)
	assert.True(t, exists)

	// the unique constraint backstops a lost check-then-insert race
	err = store.Create(ctx, account, "apns-token-1", time.Now().UTC())
	assert.ErrorIs(t, err, ErrDuplicate)

	// the same token under another account is a distinct registration
	require.NoError(t, store.Create(ctx, uuid.NewString(), "apns-token-1", time.Now().UTC()))
}
