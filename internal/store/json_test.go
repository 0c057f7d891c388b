package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAssignmentsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assignments.json")
	content := `[
		{
			"account_id": "alice",
			"email": "alice@example.com",
			"resource_id": "Court 1",
			"resource_url": "https://example.com/courts/1",
			"weekday": "saturday",
			"time_of_day": "1900"
		}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	assignments, err := ReadAssignmentsJSON(path)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "alice", assignments[0].AccountID)
}

func TestReadAssignmentsJSON_SchemaViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assignments.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"account_id": "alice"}]`), 0o644))

	_, err := ReadAssignmentsJSON(path)
	assert.Error(t, err)
}
