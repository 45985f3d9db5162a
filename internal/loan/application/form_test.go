package application

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewForm_Defaults(t *testing.T) {
	f := NewForm()
	assert.True(t, f.FetchCreditConsent)
	assert.True(t, f.KnowYourCreditScore)
	assert.Nil(t, f.AlreadyExistingCredit)
	assert.Zero(t, f.TotalEMIs)
}

func TestForm_Apply(t *testing.T) {
	f := NewForm()

	require.NoError(t, f.Apply(Patch{
		"first_name":              "Asha",
		"already_existing_credit": false,
		"total_emis":              2,
		"know_your_credit_score":  false,
	}))

	assert.Equal(t, "Asha", f.FirstName)
	require.NotNil(t, f.AlreadyExistingCredit)
	assert.False(t, *f.AlreadyExistingCredit)
	assert.Equal(t, 2, f.TotalEMIs)
	assert.False(t, f.KnowYourCreditScore)
	assert.True(t, f.FetchCreditConsent, "untouched fields keep their value")
}

func TestForm_Apply_RejectsBadPatches(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
	}{
		{"unknown key", Patch{"nickname": "Ash"}},
		{"wrong type", Patch{"first_name": 42}},
		{"bool as string", Patch{"already_existing_credit": "yes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewForm()
			f.FirstName = "Asha"
			before := f.Clone()

			assert.Error(t, f.Apply(tt.patch))
			assert.Equal(t, before, f)
		})
	}
}

func TestForm_ApplyDoesNotAliasPointers(t *testing.T) {
	f := NewForm()
	f.AlreadyExistingCredit = Bool(true)
	snapshot := f.Clone()

	require.NoError(t, f.Apply(Patch{"already_existing_credit": false}))
	assert.True(t, *snapshot.AlreadyExistingCredit)
	assert.False(t, *f.AlreadyExistingCredit)
}

func TestForm_JSONNames(t *testing.T) {
	f := NewForm()
	f.SalaryReceivedIn = SalaryBank
	f.EmploymentStatus = EmploymentSalaried

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "bank", m["salary_recieved_in"])
	assert.Equal(t, "salaried", m["employmentStatus"])
	assert.Contains(t, m, "already_existing_credit")

	for _, field := range FieldOrder() {
		assert.Contains(t, m, field, "every validated field is a form key")
	}
}

func TestSteps(t *testing.T) {
	assert.Len(t, Steps(), TotalSteps)
	assert.Equal(t, []string{"first_name", "last_name", "dob", "gender", "pan", "email"}, StepPersonal.Fields())
	assert.Equal(t, "first_name", FieldOrder()[0])
	assert.Equal(t, "credit_range", FieldOrder()[len(FieldOrder())-1])
	assert.False(t, Step(0).Valid())
	assert.False(t, Step(5).Valid())
	assert.Equal(t, "Employment Info", StepEmployment.Title())
}

func TestStepOf(t *testing.T) {
	s, ok := StepOf("company_name")
	assert.True(t, ok)
	assert.Equal(t, StepEmployment, s)

	_, ok = StepOf("city")
	assert.False(t, ok)
}
