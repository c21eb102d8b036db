package auth

import (
	"context"
	"os"
	"testing"

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
	db, err := csql.OpenWithSchema(dsn, os.Getenv("POSTGRES_PASSWORD"), "civicwatch_test_auth")
	require.NoError(t, err)
	t.Cleanup(func() {
		db.ClearSchema()
		db.Close()
	})
	return db
}

func TestSQLStoreCreateAndRead(t *testing.T) {
	store, err := NewSQLStore(testDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	account, err := store.Create(ctx, "jo", "jo@example.com", "$argon2id$hash")
	require.NoError(t, err)
	assert.NotEmpty(t, account.AccountID, "the database assigns the id")
	assert.False(t, account.CreatedAt.IsZero())

	read, err := store.ByEmail(ctx, "jo@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.AccountID, read.AccountID)
	assert.Equal(t, "jo", read.Username)
	assert.Equal(t, "$argon2id$hash", read.PasswordHash)

	_, err = store.ByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStoreDuplicates(t *testing.T) {
	store, err := NewSQLStore(testDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Create(ctx, "jo", "jo@example.com", "h")
	require.NoError(t, err)

	_, err = store.Create(ctx, "jo", "other@example.com", "h")
	assert.ErrorIs(t, err, ErrDuplicate, "username is unique")

	_, err = store.Create(ctx, "other", "jo@example.com", "h")
	assert.ErrorIs(t, err, ErrDuplicate, "email is unique")
}
