package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/muster/internal/version"
)

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitCmd_CreatesDatabaseAndSamples(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state", "muster.db")
	rolesPath := filepath.Join(dir, "roles.yaml")
	membersPath := filepath.Join(dir, "members.yaml")

	out, err := runCommand(t, InitCmd(), "--db", dbPath, "--roles", rolesPath, "--directory", membersPath)
	if err != nil {
		t.Fatalf("init failed: %v\n%s", err, out)
	}

	for _, path := range []string{dbPath, rolesPath, membersPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}
	if !strings.Contains(out, "✓ Database initialized (schema version 1)") {
		t.Errorf("unexpected output: %s", out)
	}

	// A second run keeps existing files.
	if err := os.WriteFile(rolesPath, []byte("custom"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCommand(t, InitCmd(), "--db", dbPath, "--roles", rolesPath, "--directory", membersPath); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	data, _ := os.ReadFile(rolesPath)
	if string(data) != "custom" {
		t.Errorf("init overwrote the roles file: %q", data)
	}
}

func TestRolesCmd_SampleFile(t *testing.T) {
	rolesPath := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(rolesPath, []byte(sampleRolesFile), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, RolesCmd(), "--roles", rolesPath)
	if err != nil {
		t.Fatalf("roles failed: %v", err)
	}

	want := "🎯 Operator [operator]: anyone\n🛠 Support [support]: anyone\n❌ Declined [declined]: anyone\n"
	if out != want {
		t.Errorf("roles output mismatch\ngot:\n%s\nwant:\n%s", out, want)
	}
}

func TestRolesCmd_EnvPath(t *testing.T) {
	t.Setenv("MUSTER_ROLES_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := runCommand(t, RolesCmd())
	if err == nil || !strings.Contains(err.Error(), "failed to read roles file") {
		t.Errorf("expected missing roles file error, got %v", err)
	}
}

func TestSweepCmd_RequiresStaffRole(t *testing.T) {
	t.Setenv("MUSTER_STAFF_ROLE_ID", "")

	_, err := runCommand(t, SweepCmd(), "--db", filepath.Join(t.TempDir(), "muster.db"))
	if err == nil || !strings.Contains(err.Error(), "staff role id is required") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCommand(t, VersionCmd())
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version.String() {
		t.Errorf("got %q, want %q", out, version.String())
	}
}
