package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/muster/internal/ports/secondary"
)

const sampleDirectory = `
members:
  - id: m-1
    name: Alice
    roles: [role-operator, role-staff]
  - id: m-2
    roles: []
`

func writeDirectory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "members.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Lookups(t *testing.T) {
	d, err := Load(writeDirectory(t, sampleDirectory))
	require.NoError(t, err)
	ctx := context.Background()

	roles, err := d.MemberRoles(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"role-operator", "role-staff"}, roles)

	name, err := d.DisplayName(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	name, err = d.DisplayName(ctx, "m-2")
	require.NoError(t, err)
	assert.Equal(t, "m-2", name, "falls back to the id")
}

func TestLookup_UnknownMember(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	_, err = d.MemberRoles(context.Background(), "ghost")
	assert.ErrorIs(t, err, secondary.ErrNotFound)

	_, err = d.DisplayName(context.Background(), "ghost")
	assert.ErrorIs(t, err, secondary.ErrNotFound)
}

func TestMemberRoles_ReturnsCopy(t *testing.T) {
	d, err := New([]Member{{ID: "m-1", Roles: []string{"role-pilot"}}})
	require.NoError(t, err)

	roles, _ := d.MemberRoles(context.Background(), "m-1")
	roles[0] = "role-staff"

	again, _ := d.MemberRoles(context.Background(), "m-1")
	assert.Equal(t, []string{"role-pilot"}, again)
}

func TestReload_PicksUpRoleChanges(t *testing.T) {
	path := writeDirectory(t, sampleDirectory)
	d, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("members:\n  - id: m-1\n    roles: [role-pilot]\n"), 0o644))
	require.NoError(t, d.Reload())

	roles, err := d.MemberRoles(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"role-pilot"}, roles)

	_, err = d.MemberRoles(context.Background(), "m-2")
	assert.ErrorIs(t, err, secondary.ErrNotFound)
}

// bumpModTime moves the file's mtime forward so the change is visible even on
// filesystems with coarse timestamps.
func bumpModTime(t *testing.T, path string, by time.Duration) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	next := info.ModTime().Add(by)
	require.NoError(t, os.Chtimes(path, next, next))
}

func TestLookup_ReloadsEditedFile(t *testing.T) {
	path := writeDirectory(t, sampleDirectory)
	d, err := Load(path)
	require.NoError(t, err)
	ctx := context.Background()

	roles, err := d.MemberRoles(ctx, "m-1")
	require.NoError(t, err)
	require.Equal(t, []string{"role-operator", "role-staff"}, roles)

	// The role is revoked in the file while the directory is in use.
	require.NoError(t, os.WriteFile(path, []byte("members:\n  - id: m-1\n    name: Alice\n    roles: [role-pilot]\n"), 0o644))
	bumpModTime(t, path, time.Minute)

	roles, err = d.MemberRoles(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"role-pilot"}, roles)

	_, err = d.DisplayName(ctx, "m-2")
	assert.ErrorIs(t, err, secondary.ErrNotFound)
}

func TestLookup_BrokenEditFailsClosed(t *testing.T) {
	path := writeDirectory(t, sampleDirectory)
	d, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("members: ["), 0o644))
	bumpModTime(t, path, time.Minute)

	_, err = d.MemberRoles(context.Background(), "m-1")
	assert.ErrorContains(t, err, "failed to parse member directory")

	// Fixing the file recovers without a restart.
	require.NoError(t, os.WriteFile(path, []byte(sampleDirectory), 0o644))
	bumpModTime(t, path, 2*time.Minute)

	roles, err := d.MemberRoles(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"role-operator", "role-staff"}, roles)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "malformed", content: "members: [", wantErr: "failed to parse member directory"},
		{name: "missing id", content: "members:\n  - name: Alice\n", wantErr: "id is required"},
		{name: "duplicate id", content: "members:\n  - id: m-1\n  - id: m-1\n", wantErr: "duplicate id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeDirectory(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read member directory")
}
