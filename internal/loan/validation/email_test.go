package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"asha@example.com", ""},
		{"  first.last+loans@mail.co.in ", ""},
		{"", "Email address is required"},
		{"   ", "Email address is required"},
		{strings.Repeat("a", 250) + "@x.com", "Email address is too long"},
		{"asha..rao@example.com", "Email address cannot contain consecutive dots"},
		{".asha@example.com", "Email address cannot start or end with a dot"},
		{"asha@example.com.", "Email address cannot start or end with a dot"},
		{"asha.example.com", "Email address must contain @ symbol"},
		{"asha@rao@example.com", "Email address can only contain one @ symbol"},
		{"asha@ab", "Email domain is too short"},
		{"asha@example", "Email domain must contain a dot (e.g., .com, .org)"},
		{"asha@.example.com", "Email domain cannot have empty parts"},
		{"asha@example.c", "Email domain must have a valid extension (e.g., .com, .org)"},
		{"asha.@example.com", "Please enter a valid email address"},
		{"as ha@example.com", "Please enter a valid email address"},
		{"asha@-example.com", "Please enter a valid email address"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateEmail(tt.email), "email %q", tt.email)
		assert.Equal(t, tt.want == "", IsValidEmail(tt.email))
	}
}
