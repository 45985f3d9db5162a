package validation

import (
	"regexp"
	"strings"
)

// rxEmail requires a dotted domain; each label is 1-63 alphanumerics or
// inner hyphens.
var rxEmail = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$")

// ValidateEmail returns the first failed rule's message, or "" when valid.
// Rules run in a fixed order so the message is stable for a given input.
func ValidateEmail(email string) string {
	email = strings.TrimSpace(email)

	if email == "" {
		return "Email address is required"
	}
	if len(email) > 254 {
		return "Email address is too long"
	}
	if strings.Contains(email, "..") {
		return "Email address cannot contain consecutive dots"
	}
	if strings.HasPrefix(email, ".") || strings.HasSuffix(email, ".") {
		return "Email address cannot start or end with a dot"
	}
	if !strings.Contains(email, "@") {
		return "Email address must contain @ symbol"
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "Email address can only contain one @ symbol"
	}

	local, domain := parts[0], parts[1]
	if len(domain) < 3 {
		return "Email domain is too short"
	}
	if !strings.Contains(domain, ".") {
		return "Email domain must contain a dot (e.g., .com, .org)"
	}

	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if label == "" {
			return "Email domain cannot have empty parts"
		}
	}
	if len(labels[len(labels)-1]) < 2 {
		return "Email domain must have a valid extension (e.g., .com, .org)"
	}

	if !rxEmail.MatchString(email) || strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return "Please enter a valid email address"
	}
	return ""
}

// IsValidEmail is ValidateEmail as a predicate.
func IsValidEmail(email string) bool {
	return ValidateEmail(email) == ""
}
