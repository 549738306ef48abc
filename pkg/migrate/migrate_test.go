package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateEmbedded())
}

func TestMigrationsDeclareIntegrityConstraints(t *testing.T) {
	var all strings.Builder
	require.NoError(t, fs.WalkDir(migrations, embeddedDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := fs.ReadFile(migrations, p)
		all.Write(b)
		return err
	}))
	sql := all.String()

	for _, want := range []string{
		"CHECK (available_quantity >= 0)",
		"PRIMARY KEY (product_id, variant_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_waitlist_active_subscription",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_restock_notification_cycle",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_restock_schedule_pending",
		"DROP TABLE IF EXISTS outbox_dlq",
	} {
		assert.Contains(t, sql, want)
	}
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {"m/1_create.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"duplicate version": {
			"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"m/20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\n")}},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Validate(fsys, "m"))
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Shipping Index!")
	require.NoError(t, err)
	assert.Regexp(t, `\d{14}_add_shipping_index\.sql$`, filepath.Base(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "-- +goose Down")
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}
