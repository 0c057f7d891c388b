package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/court-booker/internal/schemas"
	"github.com/jonathan/court-booker/internal/types"
)

// ReadAssignmentsJSON loads assignment rows from a JSON file, validating
// the document against the assignments schema first.
func ReadAssignmentsJSON(path string) ([]types.Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignments file: %w", err)
	}

	if err := schemas.ValidateAssignments(string(data)); err != nil {
		return nil, fmt.Errorf("invalid assignments file %s: %w", path, err)
	}

	var assignments []types.Assignment
	if err := json.Unmarshal(data, &assignments); err != nil {
		return nil, fmt.Errorf("failed to parse assignments JSON: %w", err)
	}
	return assignments, nil
}
