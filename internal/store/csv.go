package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonathan/court-booker/internal/types"
)

// csvColumns is the expected header of an assignment CSV file.
var csvColumns = []string{"account_id", "email", "credentials_ref", "resource_id", "resource_url", "weekday", "time_of_day", "notes"}

// ReadAssignmentsCSV loads assignment rows from a CSV file. The file must
// carry the standard header; trailing optional columns may be omitted
// per row.
func ReadAssignmentsCSV(path string) ([]types.Assignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open assignments file: %w", err)
	}
	defer f.Close()

	return parseAssignmentsCSV(f)
}

func parseAssignmentsCSV(r io.Reader) ([]types.Assignment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read assignments header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range csvColumns[:7] {
		if required == "credentials_ref" {
			continue
		}
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("assignments file missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var assignments []types.Assignment
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read assignment row: %w", err)
		}
		assignments = append(assignments, types.Assignment{
			AccountID:      field(record, "account_id"),
			Email:          field(record, "email"),
			CredentialsRef: field(record, "credentials_ref"),
			ResourceID:     field(record, "resource_id"),
			ResourceURL:    field(record, "resource_url"),
			Weekday:        field(record, "weekday"),
			TimeOfDay:      field(record, "time_of_day"),
			Notes:          field(record, "notes"),
		})
	}
	return assignments, nil
}
