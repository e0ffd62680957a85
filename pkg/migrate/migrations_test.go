package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YeLlowseaG/clientseeker/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestBillingMigrationsCarryIdempotencyConstraints(t *testing.T) {
	checks := map[string][]string{
		"*_create_orders.sql": {
			"CONSTRAINT orders_order_no_key UNIQUE (order_no)",
			"CHECK (status IN ('pending', 'paid', 'completed', 'failed'))",
		},
		"*_create_subscriptions.sql": {
			"CONSTRAINT subscriptions_order_no_key UNIQUE (order_no)",
			"CREATE UNIQUE INDEX subscriptions_one_active_per_user",
			"WHERE status = 'active'",
		},
		"*_create_credit_entries.sql": {
			"CONSTRAINT credit_entries_trans_no_key UNIQUE (trans_no)",
			"BEFORE UPDATE OR DELETE ON credit_entries",
		},
	}

	for pattern, statements := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		require.NoError(t, err)
		require.Len(t, matches, 1, "expected one migration for %s", pattern)

		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		content := string(data)
		for _, stmt := range statements {
			assert.True(t, strings.Contains(content, stmt), "%s missing %q", matches[0], stmt)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Credit Notes!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_credit_notes.sql"), path)
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"missing_down":  "20260101000000_x.sql|-- +goose Up\nSELECT 1;\n",
		"down_first":    "20260101000000_x.sql|-- +goose Down\n-- +goose Up\n",
		"bad_file_name": "2026_x.sql|-- +goose Up\n-- +goose Down\n",
	}
	for name, fixture := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			parts := strings.SplitN(fixture, "|", 2)
			require.NoError(t, os.WriteFile(filepath.Join(dir, parts[0]), []byte(parts[1]), 0o644))
			assert.Error(t, migrate.ValidateDir(dir))
		})
	}
}

func TestEmbeddedSourceMatchesDisk(t *testing.T) {
	fsys, err := migrate.Source(migrate.DefaultDir)
	require.NoError(t, err)
	embedded, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)

	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	for i := range onDisk {
		onDisk[i] = filepath.Base(onDisk[i])
	}
	assert.ElementsMatch(t, onDisk, embedded)
	assert.NotEmpty(t, embedded)

	_, err = migrate.Source(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
