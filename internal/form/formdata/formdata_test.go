package formdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Data {
	return Data{
		PersonalInfo: map[string]interface{}{
			"surname":   "Doe",
			"firstName": " John ",
		},
		AcademicBackground: map[string]interface{}{
			"certificates": []interface{}{
				map[string]interface{}{"type": "WAEC", "grade": "B2", "year": "2019"},
			},
		},
		Accommodation: map[string]interface{}{"needsAccommodation": true},
	}
}

func TestGet(t *testing.T) {
	d := sample()

	v, ok := d.Get("personalInfo.surname")
	require.True(t, ok)
	assert.Equal(t, "Doe", v)

	v, ok = d.Get("academicBackground.certificates.0.grade")
	require.True(t, ok)
	assert.Equal(t, "B2", v)

	_, ok = d.Get("academicBackground.certificates.3.grade")
	assert.False(t, ok)
	_, ok = d.Get("referee.name")
	assert.False(t, ok)
	_, ok = d.Get("personalInfo.surname.extra")
	assert.False(t, ok)

	assert.Equal(t, "John", d.String("personalInfo.firstName"))
	assert.True(t, d.Bool("accommodation.needsAccommodation"))
	assert.False(t, d.Bool("personalInfo.hasDisability"))
}

func TestCloneIsDeep(t *testing.T) {
	d := sample()
	c := d.Clone()

	c[PersonalInfo].(map[string]interface{})["surname"] = "Changed"
	c[AcademicBackground].(map[string]interface{})["certificates"].([]interface{})[0].(map[string]interface{})["grade"] = "A1"

	assert.Equal(t, "Doe", d.String("personalInfo.surname"))
	assert.Equal(t, "B2", d.String("academicBackground.certificates.0.grade"))
	assert.Equal(t, Data{}, Data(nil).Clone())
}

func TestMergeIsShallow(t *testing.T) {
	d := sample()
	merged := d.Merge(Data{PersonalInfo: map[string]interface{}{"surname": "Roe"}})

	assert.Equal(t, "Roe", merged.String("personalInfo.surname"))
	_, ok := merged.Get("personalInfo.firstName")
	assert.False(t, ok, "top-level section is replaced, not deep-merged")
	assert.Equal(t, "B2", merged.String("academicBackground.certificates.0.grade"))
	assert.Equal(t, "Doe", d.String("personalInfo.surname"))
}

func TestWithField(t *testing.T) {
	d := sample()

	partial, err := d.WithField("personalInfo.middleName", "Q")
	require.NoError(t, err)
	merged := d.Merge(partial)
	assert.Equal(t, "Q", merged.String("personalInfo.middleName"))
	assert.Equal(t, "Doe", merged.String("personalInfo.surname"))

	partial, err = d.WithField("accommodation.sponsorDetails.name", "Aunt May")
	require.NoError(t, err)
	merged = d.Merge(partial)
	assert.Equal(t, "Aunt May", merged.String("accommodation.sponsorDetails.name"))
	assert.True(t, merged.Bool("accommodation.needsAccommodation"))

	partial, err = d.WithField("academicBackground.certificates.1.type", "NECO")
	require.NoError(t, err)
	merged = d.Merge(partial)
	assert.Equal(t, "NECO", merged.String("academicBackground.certificates.1.type"))
	assert.Equal(t, "WAEC", merged.String("academicBackground.certificates.0.type"))

	partial, err = Data{}.WithField("referee.name", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{Referee}, Sections(partial))
}

func TestWithField_ListIndexBounds(t *testing.T) {
	d := sample()

	tests := []struct {
		name string
		path string
	}{
		{name: "far past the end", path: "academicBackground.certificates.2000000.type"},
		{name: "one gap past the end", path: "academicBackground.certificates.2.type"},
		{name: "negative", path: "academicBackground.certificates.-1.type"},
		{name: "gap in an empty list", path: "referee.phones.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partial, err := d.WithField(tt.path, "WAEC")
			require.ErrorIs(t, err, ErrIndexOutOfRange)
			assert.Nil(t, partial)
		})
	}

	certs, _ := d.Get("academicBackground.certificates")
	assert.Len(t, certs, 1, "the source draft is untouched")
}

func TestNormalize(t *testing.T) {
	type info struct {
		Surname string `json:"surname"`
	}
	d, err := Normalize(map[string]interface{}{PersonalInfo: info{Surname: "Doe"}})
	require.NoError(t, err)
	assert.Equal(t, "Doe", d.String("personalInfo.surname"))
}
