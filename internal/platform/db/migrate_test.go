package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff/internal/platform/config"
)

func TestOpenSQLiteAppliesMigrations(t *testing.T) {
	ctx := context.Background()
	database, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	for _, table := range []string{"staff_members", "time_off_categories", "time_off_requests"} {
		var name string
		err := database.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	// Re-running is a no-op.
	require.NoError(t, MigrateSQLite(ctx, database))
	var versions int
	require.NoError(t, database.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}

func TestLoadMigrationsSorted(t *testing.T) {
	for _, dir := range []string{"migrations/postgres", "migrations/sqlite"} {
		migrations, err := loadMigrations(dir)
		require.NoError(t, err)
		require.NotEmpty(t, migrations)
		for i := 1; i < len(migrations); i++ {
			assert.Less(t, migrations[i-1].Version, migrations[i].Version)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n  CREATE INDEX b ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX b ON a (x)"}, got)
}

type recordingSeeder struct {
	tenants []string
	titles  []string
}

func (r *recordingSeeder) EnsureCategory(_ context.Context, tenantID, title string, _ int, _ bool) error {
	r.tenants = append(r.tenants, tenantID)
	r.titles = append(r.titles, title)
	return nil
}

func TestSeedSkipsWithoutTenant(t *testing.T) {
	seeder := &recordingSeeder{}
	require.NoError(t, Seed(context.Background(), seeder, config.Config{}))
	assert.Empty(t, seeder.titles)
}

func TestSeedDefaultCategories(t *testing.T) {
	seeder := &recordingSeeder{}
	require.NoError(t, Seed(context.Background(), seeder, config.Config{SeedTenantID: "t1"}))
	assert.Len(t, seeder.titles, len(defaultCategories))
	for _, tenant := range seeder.tenants {
		assert.Equal(t, "t1", tenant)
	}
}
