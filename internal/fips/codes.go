package fips

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// NormalizeState normalizes a state FIPS code to 2 digits with zero-padding.
func NormalizeState(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if len(code) == 1 {
		return "0" + code
	}
	return code
}

// NormalizeCounty normalizes a county FIPS code to 3 digits with zero-padding.
func NormalizeCounty(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	for len(code) < 3 {
		code = "0" + code
	}
	return code
}

// Combine combines state and county FIPS codes into a 5-digit code.
func Combine(state, county string) string {
	s := NormalizeState(state)
	c := NormalizeCounty(county)
	if s == "" || c == "" {
		return ""
	}
	return s + c
}

// Split breaks a 5-digit county code into its state and county parts.
func Split(code string) (state, county string, err error) {
	code = strings.TrimSpace(code)
	if len(code) != 5 || !isDigits(code) {
		return "", "", eris.Errorf("fips: %q is not a 5-digit county code", code)
	}
	return code[:2], code[2:], nil
}

// Format formats a numeric FIPS code with proper zero-padding.
func Format(code int, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}

// StatePart returns the leading 2 digits of a state, county, or block-group code.
func StatePart(code string) string {
	code = strings.TrimSpace(code)
	if len(code) == 1 {
		return "0" + code
	}
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
