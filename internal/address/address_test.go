package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() Fields {
	return Fields{
		Street: "123 Main Street",
		City:   "annapolis",
		State:  "md",
		ZIP:    "21401",
	}
}

func TestValidate_Normalization(t *testing.T) {
	normalized, errs := Validate(validFields())
	require.Empty(t, errs)

	assert.Equal(t, "Annapolis", normalized.City)
	assert.Equal(t, "MD", normalized.State)
	assert.Equal(t, "21401", normalized.ZIP)
}

func TestSameMailing(t *testing.T) {
	a, errs := Validate(validFields())
	require.Empty(t, errs)

	b := a
	b.County = "Anne Arundel"
	assert.True(t, a.SameMailing(b), "county is enrichment-derived, not a mailing field")

	b = a
	b.Street = "500 Oak Avenue"
	assert.False(t, a.SameMailing(b))
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	_, errs := Validate(Fields{
		Street: "abc",
		City:   "x",
		State:  "XX",
		ZIP:    "1234",
	})
	require.Len(t, errs, 4)

	fields := FieldMap(errs)
	assert.Contains(t, fields, "street_address")
	assert.Contains(t, fields, "city")
	assert.Contains(t, fields, "state")
	assert.Contains(t, fields, "zip_code")
}

func TestValidate_ZIP(t *testing.T) {
	cases := []struct {
		zip   string
		valid bool
	}{
		{"21401", true},
		{"21401-1234", true},
		{"1234", false},
		{"214011", false},
		{"21401-12", false},
		{"abcde", false},
	}
	for _, tc := range cases {
		f := validFields()
		f.ZIP = tc.zip
		_, errs := Validate(f)
		if tc.valid {
			assert.Empty(t, errs, "zip %q", tc.zip)
		} else {
			assert.NotEmpty(t, errs, "zip %q", tc.zip)
		}
	}
}

func TestValidate_City(t *testing.T) {
	cases := []struct {
		city  string
		valid bool
	}{
		{"Winston-Salem", true},
		{"O'Fallon", true},
		{"St. Louis", false}, // periods not allowed
		{"City123", false},
	}
	for _, tc := range cases {
		f := validFields()
		f.City = tc.city
		_, errs := Validate(f)
		if tc.valid {
			assert.Empty(t, errs, "city %q", tc.city)
		} else {
			assert.NotEmpty(t, errs, "city %q", tc.city)
		}
	}
}

func TestValidate_StateList(t *testing.T) {
	f := validFields()
	f.State = "pr" // territory codes accepted
	_, errs := Validate(f)
	assert.Empty(t, errs)

	f.State = "ZZ"
	_, errs = Validate(f)
	require.Len(t, errs, 1)
	assert.Equal(t, "state", errs[0].Field)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Winston-Salem", TitleCase("WINSTON-SALEM"))
	assert.Equal(t, "O'Fallon", TitleCase("o'fallon"))
	assert.Equal(t, "New York", TitleCase("new york"))
}

func TestNormalizedEqual(t *testing.T) {
	a, errs := Validate(validFields())
	require.Empty(t, errs)
	b := a
	assert.True(t, a.Equal(b))

	b.Street = "456 Other Street"
	assert.False(t, a.Equal(b))
}
