package validation

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

const DateLayout = "2006-01-02"

var (
	validate = validator.New()

	phonePattern = regexp.MustCompile(`^\+\d{2,15}$`)
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
)

func ValidateEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// ValidatePhone accepts international numbers: a leading + followed by 2 to 15 digits.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func ValidateURL(url string) bool {
	return validate.Var(url, "required,url") == nil
}

func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	return t, err == nil
}

func ValidateYear(s string) bool {
	return yearPattern.MatchString(s)
}

// AgeOn returns the number of whole years between birth and ref.
func AgeOn(birth, ref time.Time) int {
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	return age
}
