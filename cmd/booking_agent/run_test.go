package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withoutDatabaseURL(cmd *exec.Cmd) {
	cmd.Env = nil
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "DATABASE_URL=") {
			cmd.Env = append(cmd.Env, e)
		}
	}
}

func TestRunCommand_MissingSource(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "run")
	withoutDatabaseURL(cmd)
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "either --assignments or --db-url must be provided")
}

func TestRunCommand_DryRunFromCSV(t *testing.T) {
	binaryPath := getBinaryPath(t)

	// One assignment per weekday so the run always selects exactly one row,
	// whatever today's target date is.
	var rows strings.Builder
	rows.WriteString("account_id,email,credentials_ref,resource_id,resource_url,weekday,time_of_day,notes\n")
	for _, day := range []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"} {
		rows.WriteString("alice,alice@example.com,,Court 1,https://example.com/courts/1," + day + ",1900,\n")
	}
	path := filepath.Join(t.TempDir(), "assignments.csv")
	require.NoError(t, os.WriteFile(path, []byte(rows.String()), 0o644))

	cmd := exec.Command(binaryPath, "run", "--dry-run", "--assignments", path)
	withoutDatabaseURL(cmd)
	cmd.Env = append(cmd.Env, "ALICE_PASSWORD=secret")
	output, err := cmd.CombinedOutput()

	require.NoError(t, err, string(output))
	assert.Contains(t, string(output), "Booking run")
	assert.Contains(t, string(output), "alice")
}

func TestRunCommand_RejectsUnknownWeekday(t *testing.T) {
	binaryPath := getBinaryPath(t)

	path := filepath.Join(t.TempDir(), "assignments.csv")
	content := "account_id,email,credentials_ref,resource_id,resource_url,weekday,time_of_day,notes\n" +
		"alice,alice@example.com,,Court 1,https://example.com/courts/1,sat,1900,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cmd := exec.Command(binaryPath, "run", "--dry-run", "--assignments", path,
		"--weekday", "bogusday")
	withoutDatabaseURL(cmd)
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "invalid --weekday")
}

func TestScheduleCommand_Preview(t *testing.T) {
	binaryPath := getBinaryPath(t)

	path := filepath.Join(t.TempDir(), "assignments.csv")
	content := "account_id,email,credentials_ref,resource_id,resource_url,weekday,time_of_day,notes\n" +
		"alice,alice@example.com,,Court 1,https://example.com/courts/1,sat,25:99,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cmd := exec.Command(binaryPath, "schedule", "--assignments", path)
	withoutDatabaseURL(cmd)
	output, err := cmd.CombinedOutput()

	require.NoError(t, err, string(output))
	assert.Contains(t, string(output), "BOOKING TARGET")
	assert.Contains(t, string(output), "SCHEDULE ISSUES")
}

func TestLogCommand_RequiresDatabase(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "log")
	withoutDatabaseURL(cmd)
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "DATABASE_URL")
}
