package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oliehub/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sync logs", "add_sync_logs"},
		{"Add-Sync-Logs", "add_sync_logs"},
		{"add__sync__logs", "add_sync_logs"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NextSequentialVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000002_create_sync_audit.up.sql"), []byte("--"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000002_create_sync_audit.down.sql"), []byte("--"), 0644))

	mf, err := CreateMigration(dir, "add webhook deliveries", "Persist webhook deliveries")
	require.NoError(t, err)

	assert.Equal(t, "000003", mf.Version)
	assert.Equal(t, "000003_add_webhook_deliveries.up.sql", filepath.Base(mf.UpPath))
	assert.Equal(t, "000003_add_webhook_deliveries.down.sql", filepath.Base(mf.DownPath))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Persist webhook deliveries")
	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"000002_b.up.sql", "000002_b.down.sql",
		"000001_a.up.sql", "000001_a.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("--"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0755))

	list, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_a", "000002_b"}, list)

	list, err = ListMigrations(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEmbeddedMigrations_ArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok {
			ups[base] = true
		}
		if base, ok := strings.CutSuffix(e.Name(), ".down.sql"); ok {
			downs[base] = true
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
	assert.Equal(t, 2, nextVersion(keys(ups))-1)
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
