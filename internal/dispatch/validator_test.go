package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"catmcp/internal/domain"
)

func TestValidator_AcceptsCompleteMetadata(t *testing.T) {
	v := NewValidator(nil)

	err := v.Validate(domain.ToolMetadata{
		Name:        "get_entities",
		Description: "lists entities",
		ParamSchema: json.RawMessage(`{"type":"object"}`),
	}, "tools.GetEntities")
	require.NoError(t, err)
}

func TestValidator_RejectsMissingFields(t *testing.T) {
	v := NewValidator(nil)

	err := v.Validate(domain.ToolMetadata{Name: "  ", Description: ""}, "broken")
	require.Error(t, err)

	kind, ok := domain.TypeFrom(err)
	require.True(t, ok)
	require.Equal(t, domain.ErrorTypeValidation, kind)
	require.Contains(t, err.Error(), "name must be a non-empty string")
	require.Contains(t, err.Error(), "description must be a non-empty string")
}

func TestValidator_RejectsNegativeBatchSize(t *testing.T) {
	v := NewValidator(nil)

	err := v.Validate(domain.ToolMetadata{
		Name:         "batched",
		Description:  "coalesces",
		MaxBatchSize: -1,
	}, "broken")
	require.Error(t, err)
	require.Contains(t, err.Error(), "maxBatchSize")
}

func TestValidator_RejectsMalformedSchema(t *testing.T) {
	v := NewValidator(nil)

	err := v.Validate(domain.ToolMetadata{
		Name:        "bad_schema",
		Description: "schema does not parse",
		ParamSchema: json.RawMessage(`{"type":`),
	}, "broken")
	require.Error(t, err)
	require.Contains(t, err.Error(), "paramSchema must be valid JSON")
}

func TestValidator_AcceptsNonObjectSchema(t *testing.T) {
	v := NewValidator(nil)

	// A schema that is valid JSON but not a structural object only degrades
	// the manifest entry.
	err := v.Validate(domain.ToolMetadata{
		Name:        "odd_schema",
		Description: "boolean schema",
		ParamSchema: json.RawMessage(`true`),
	}, "tools.Odd")
	require.NoError(t, err)
}
