// Package address validates and normalizes stakeholder mailing addresses.
// Validation runs before any geocoding is attempted; geocoding is skipped
// entirely when validation fails.
package address

import (
	"regexp"
	"strings"
	"unicode"
)

// Fields is the raw address input from a submission form.
type Fields struct {
	Street string `json:"street_address"`
	City   string `json:"city"`
	State  string `json:"state"`
	ZIP    string `json:"zip_code"`
	County string `json:"county,omitempty"`
}

// Normalized is a validated address with canonical casing.
type Normalized struct {
	Street string
	City   string
	State  string
	ZIP    string
	County string
}

// SameMailing reports whether two normalized addresses carry the same mailing
// fields. County is derived during geo-enrichment and excluded from the
// comparison.
func (n Normalized) SameMailing(o Normalized) bool {
	return n.Street == o.Street && n.City == o.City && n.State == o.State && n.ZIP == o.ZIP
}

// FieldError describes a single field violation.
type FieldError struct {
	Field   string
	Message string
}

var (
	zipPattern  = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	cityPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z '\-]*$`)
)

// Validate checks every field independently and returns all violations
// together, so callers can surface every problem at once. It is a pure
// function over its input.
func Validate(f Fields) (Normalized, []FieldError) {
	var errs []FieldError

	street := strings.TrimSpace(f.Street)
	if len(street) < 5 || len(street) > 255 {
		errs = append(errs, FieldError{Field: "street_address", Message: "must be between 5 and 255 characters"})
	}

	city := TitleCase(strings.TrimSpace(f.City))
	switch {
	case len(city) < 2 || len(city) > 100:
		errs = append(errs, FieldError{Field: "city", Message: "must be between 2 and 100 characters"})
	case !cityPattern.MatchString(city):
		errs = append(errs, FieldError{Field: "city", Message: "may contain only letters, spaces, hyphens, and apostrophes"})
	}

	state := strings.ToUpper(strings.TrimSpace(f.State))
	if !ValidState(state) {
		errs = append(errs, FieldError{Field: "state", Message: "must be a valid two-letter state or territory code"})
	}

	zip := strings.TrimSpace(f.ZIP)
	if !zipPattern.MatchString(zip) {
		errs = append(errs, FieldError{Field: "zip_code", Message: "must be a 5-digit ZIP or ZIP+4"})
	}

	if len(errs) > 0 {
		return Normalized{}, errs
	}
	return Normalized{
		Street: street,
		City:   city,
		State:  state,
		ZIP:    zip,
		County: strings.TrimSpace(f.County),
	}, nil
}

// FieldMap flattens field errors for the validation error envelope.
func FieldMap(errs []FieldError) map[string]string {
	m := make(map[string]string, len(errs))
	for _, e := range errs {
		m[e.Field] = e.Message
	}
	return m
}

// TitleCase upper-cases the first letter of each word, handling hyphenated
// and apostrophized city names ("winston-salem" -> "Winston-Salem").
func TitleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	startOfWord := true
	for i, r := range runes {
		if startOfWord && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
		}
		startOfWord = r == ' ' || r == '-' || r == '\''
	}
	return string(runes)
}

// Equal reports whether two normalized addresses match field for field. Used
// to decide whether an upsert changed the address and needs re-geocoding.
func (n Normalized) Equal(other Normalized) bool {
	return n.Street == other.Street &&
		n.City == other.City &&
		n.State == other.State &&
		n.ZIP == other.ZIP &&
		n.County == other.County
}
