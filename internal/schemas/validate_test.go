package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAssignments_Valid(t *testing.T) {
	doc := `[
		{
			"account_id": "alice",
			"email": "alice@example.com",
			"resource_id": "Court 1",
			"resource_url": "https://example.com/courts/1",
			"weekday": "saturday",
			"time_of_day": "1900"
		}
	]`
	assert.NoError(t, ValidateAssignments(doc))
}

func TestValidateAssignments_MissingRequiredField(t *testing.T) {
	doc := `[
		{
			"account_id": "alice",
			"email": "alice@example.com",
			"resource_id": "Court 1",
			"resource_url": "https://example.com/courts/1",
			"weekday": "saturday"
		}
	]`
	err := ValidateAssignments(doc)
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.NotEmpty(t, ve.Errors)
}

func TestValidateAssignments_UnknownField(t *testing.T) {
	doc := `[
		{
			"account_id": "alice",
			"email": "alice@example.com",
			"resource_id": "Court 1",
			"resource_url": "https://example.com/courts/1",
			"weekday": "saturday",
			"time_of_day": "1900",
			"court": "1"
		}
	]`
	assert.Error(t, ValidateAssignments(doc))
}

func TestValidateConfig_Valid(t *testing.T) {
	assert.NoError(t, ValidateConfig(`{"lead_days": 35, "headless": true}`))
}

func TestValidateConfig_BadLeadDays(t *testing.T) {
	err := ValidateConfig(`{"lead_days": 0}`)
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestValidateJSONString_BrokenSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": "nonsense"}`, `{}`)
	require.Error(t, err)

	var le *SchemaLoadError
	assert.True(t, errors.As(err, &le))
}
