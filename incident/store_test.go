package incident

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
	db, err := csql.OpenWithSchema(dsn, os.Getenv("POSTGRES_PASSWORD"), "civicwatch_test_incident")
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

	report := &Report{
		Description: "Illegal dumping",
		Latitude:    12.3,
		Longitude:   45.6,
		Status:      StatusSubmitted,
		ReportedAt:  time.Now().UTC(),
		AccountID:   uuid.NewString(),
		PhotoURL:    "/uploads/" + uuid.NewString() + ".jpg",
	}
	created, err := store.Create(ctx, report)
	require.NoError(t, err)
	assert.NotZero(t, created.IncidentID, "the database assigns the id")

	read, err := store.ByID(ctx, created.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, report.Description, read.Description)
	assert.Equal(t, report.Latitude, read.Latitude)
	assert.Equal(t, report.Longitude, read.Longitude)
	assert.Equal(t, StatusSubmitted, read.Status)
	assert.Equal(t, report.AccountID, read.AccountID)
	assert.Equal(t, report.PhotoURL, read.PhotoURL)
	assert.WithinDuration(t, report.ReportedAt, read.ReportedAt, time.Millisecond)

	_, err = store.ByID(ctx, created.IncidentID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}
