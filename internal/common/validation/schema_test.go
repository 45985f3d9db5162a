package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"form", "bearerToken"},
		"properties": map[string]interface{}{
			"bearerToken": map[string]interface{}{"type": "string", "minLength": 1},
			"form": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"pan"},
				"properties": map[string]interface{}{
					"pan":    map[string]interface{}{"type": "string"},
					"gender": map[string]interface{}{"type": "string", "enum": []interface{}{"male", "female", "other"}},
				},
			},
		},
	}
}

func TestSchema_Valid(t *testing.T) {
	s, err := Compile(submitSchema())
	require.NoError(t, err)

	res, err := s.ValidateJSON(`{"bearerToken":"tok","form":{"pan":"ABCDE1234F","gender":"female"}}`)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestSchema_Errors(t *testing.T) {
	s, err := Compile(submitSchema())
	require.NoError(t, err)

	res, err := s.ValidateJSON(`{"bearerToken":"","form":{"gender":"unknown"}}`)
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("bearerToken"))
	assert.True(t, res.HasErrors("form.gender"))
	assert.True(t, res.HasErrors("form.pan"))
	assert.Len(t, res.GetErrorsForField("form"), 2)

	codes := map[string]string{}
	for _, e := range res.Errors {
		codes[e.Field] = e.Code
	}
	assert.Equal(t, "MIN_LENGTH_VIOLATION", codes["bearerToken"])
	assert.Equal(t, "INVALID_ENUM_VALUE", codes["form.gender"])
	assert.Equal(t, "REQUIRED_FIELD_MISSING", codes["form.pan"])
	assert.Len(t, res.GetErrorMessages(), 3)
}

func TestValidateInput_MissingTopLevel(t *testing.T) {
	res, err := ValidateInput(map[string]interface{}{}, submitSchema())
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("form"))
	assert.True(t, res.HasErrors("bearerToken"))
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 42})
	assert.Error(t, err)
}

func TestSchema_MalformedDocument(t *testing.T) {
	s, err := Compile(submitSchema())
	require.NoError(t, err)
	_, err = s.ValidateJSON(`{not json`)
	assert.Error(t, err)
}

func TestValidateTaskType(t *testing.T) {
	assert.NoError(t, ValidateTaskType("submit-loan-lead"))
	assert.NoError(t, ValidateTaskType("record-loan-lead"))
	assert.Error(t, ValidateTaskType("submit"))
	assert.Error(t, ValidateTaskType("Submit-Lead"))
	assert.Error(t, ValidateTaskType("submit_loan_lead"))
}
