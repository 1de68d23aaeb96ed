package staff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff/internal/platform/db"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	database, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewSQLiteStore(database)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	created, err := store.CreateStaffMember(ctx, StaffMember{TenantID: "t1", UserID: "u1", FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, StatusActive, created.Status)

	got, err := store.GetStaffMember(ctx, "t1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "Grace Hopper", got.FullName())

	id, err := store.StaffIDByUserID(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, id)
}

func TestSQLiteStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	created, err := store.CreateStaffMember(ctx, StaffMember{TenantID: "t1", UserID: "u1", FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	_, err = store.GetStaffMember(ctx, "t2", created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.StaffIDByUserID(ctx, "t2", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreStaffWithoutUser(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	first, err := store.CreateStaffMember(ctx, StaffMember{TenantID: "t1", FirstName: "No", LastName: "Login"})
	require.NoError(t, err)
	second, err := store.CreateStaffMember(ctx, StaffMember{TenantID: "t1", FirstName: "Also", LastName: "None", Status: StatusInactive})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := store.GetStaffMember(ctx, "t1", second.ID)
	require.NoError(t, err)
	assert.False(t, got.Active())
	assert.Empty(t, got.UserID)
}
