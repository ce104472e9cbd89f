package service

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePhone strips every non-digit character.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhoneDisplay renders a 10-digit number as XXX-XXX-XXXX; anything
// else passes through untouched.
func FormatPhoneDisplay(digits string) string {
	if len(digits) == 10 {
		return fmt.Sprintf("%s-%s-%s", digits[:3], digits[3:6], digits[6:])
	}
	return digits
}

// smsPhone formats a number for Textbelt delivery: 10 digits get the +1
// country prefix.
func smsPhone(raw string) string {
	digits := NormalizePhone(raw)
	if len(digits) == 10 {
		return "+1" + digits
	}
	if strings.HasPrefix(raw, "+") {
		return raw
	}
	return digits
}
