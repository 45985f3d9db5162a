package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/asaskevich/govalidator"
	"github.com/nyaruka/phonenumbers"
)

const (
	phoneRegion      = "IN"
	indiaCountryCode = 91
)

var rxPAN = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// NormalizePAN trims and upper-cases a PAN.
func NormalizePAN(pan string) string {
	return strings.ToUpper(strings.TrimSpace(pan))
}

// ValidatePAN checks the normalized PAN; "abcde1234f" is accepted.
func ValidatePAN(pan string) string {
	pan = NormalizePAN(pan)
	if pan == "" {
		return "PAN card number is required"
	}
	if !rxPAN.MatchString(pan) {
		return "Invalid PAN format (e.g., ABCDE1234F)"
	}
	return ""
}

// NormalizePhone turns input such as "+91 98765 43210" or "098765-43210"
// into the 10-digit national number. The message is "" on success.
func NormalizePhone(input string) (string, string) {
	const invalid = "Please enter a valid 10-digit phone number"

	input = strings.TrimSpace(input)
	if input == "" || strings.IndexFunc(input, unicode.IsLetter) >= 0 {
		return "", invalid
	}

	num, err := phonenumbers.Parse(input, phoneRegion)
	if err != nil || num.GetCountryCode() != indiaCountryCode {
		return "", invalid
	}

	national := phonenumbers.GetNationalSignificantNumber(num)
	if len(national) != 10 || !govalidator.IsNumeric(national) {
		return "", invalid
	}
	return national, ""
}

// ValidateOTP requires exactly six digits.
func ValidateOTP(code string) string {
	code = strings.TrimSpace(code)
	if len(code) != 6 || !govalidator.IsNumeric(code) {
		return "Please enter a valid 6-digit OTP"
	}
	return ""
}
