package steps

import (
	"testing"

	"admissions-portal/internal/form/formdata"
	"admissions-portal/internal/form/formtest"
	"admissions-portal/internal/form/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() *Validator {
	return NewValidator(DefaultRegistry(), schema.ApplicantSchema())
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, 5, r.Count())
	assert.Equal(t, 4, r.Last())

	keys := []string{}
	for i, s := range r.Steps() {
		assert.Equal(t, i, s.Index)
		keys = append(keys, s.Prefix)
	}
	assert.Equal(t, []string{"personalInfo", "academicBackground", "programSelection", "accommodation", "referee"}, keys)

	_, ok := r.Step(5)
	assert.False(t, ok)
	_, ok = r.Step(-1)
	assert.False(t, ok)
}

func TestStepForPath(t *testing.T) {
	r := DefaultRegistry()

	tests := map[string]int{
		"personalInfo.surname":                   0,
		"academicBackground.certificates.0.year": 1,
		"programSelection":                       2,
		"accommodation.sponsorDetails.name":      3,
		"referee.email":                          4,
	}
	for path, want := range tests {
		got, ok := r.StepForPath(path)
		require.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := r.StepForPath("personalInfoExtra.x")
	assert.False(t, ok)
}

func TestStepsForSections(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []int{0, 3}, r.StepsForSections([]string{"accommodation", "personalInfo", "unknown"}))
	assert.Empty(t, r.StepsForSections(nil))
}

func TestValidateStep_EmptyNamesRequired(t *testing.T) {
	v := newValidator()
	d := formdata.Data{"personalInfo": map[string]interface{}{"surname": "", "firstName": ""}}

	res := v.ValidateStep(d, 0)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Surname is required"}, res.Errors["personalInfo.surname"])
	assert.Equal(t, []string{"First name is required"}, res.Errors["personalInfo.firstName"])
}

func TestValidateStep_OnlyOwnedFields(t *testing.T) {
	v := newValidator()
	d := formdata.Data{"personalInfo": formtest.PersonalInfo()}

	assert.True(t, v.ValidateStep(d, 0).Valid)
	res := v.ValidateStep(d, 1)
	assert.False(t, res.Valid)
	for path := range res.Errors {
		assert.Contains(t, path, "academicBackground.")
	}
}

func TestValidateStep_Idempotent(t *testing.T) {
	v := newValidator()
	d := formdata.Data{"referee": map[string]interface{}{"name": "X", "phone": "123"}}
	before := d.Clone()

	for i := 0; i < 5; i++ {
		assert.Equal(t, v.ValidateStep(d, i), v.ValidateStep(d, i))
	}
	assert.Equal(t, before, d)
}

func TestValidateStep_OutOfRange(t *testing.T) {
	res := newValidator().ValidateStep(formtest.ValidDraft(), 9)
	assert.False(t, res.Valid)
}

func TestValidateAll(t *testing.T) {
	v := newValidator()

	all := v.ValidateAll(formtest.ValidDraft())
	assert.True(t, all.Valid)
	assert.Equal(t, -1, all.FirstInvalid)
	assert.Len(t, all.Steps, 5)

	d := formtest.ValidDraft()
	delete(d, "programSelection")
	d["referee"].(map[string]interface{})["email"] = "nope"

	all = v.ValidateAll(d)
	assert.False(t, all.Valid)
	assert.Equal(t, 2, all.FirstInvalid)
	assert.False(t, all.Steps[2].Valid)
	assert.False(t, all.Steps[4].Valid)
	assert.True(t, all.Steps[0].Valid)
	assert.Contains(t, all.Errors, "programSelection.programId")
	assert.Contains(t, all.Errors, "referee.email")
}
