// Package phone canonicalizes Turkish GSM numbers for the SMS gateway.
// Every consumer of recipient phone numbers goes through Normalize; there
// is deliberately exactly one copy of this logic.
package phone

import (
	"errors"
	"strings"
)

// ErrNormalization means the input could not be canonicalized to a
// 10-digit 5XXXXXXXXX subscriber number.
var ErrNormalization = errors.New("phone: normalization failed")

// Normalize converts free-form phone input into the 10-digit local form
// the gateway expects ("no" field): 5XXXXXXXXX.
//
// Accepted shapes for the same subscriber:
//
//	05461234567   -> 5461234567
//	5461234567    -> 5461234567
//	905461234567  -> 5461234567
//	+905461234567 -> 5461234567
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrNormalization
	}

	if strings.HasPrefix(digits, "90") && len(digits) >= 12 {
		digits = digits[2:]
	}
	if strings.HasPrefix(digits, "0") && len(digits) >= 11 {
		digits = digits[1:]
	}

	if len(digits) == 10 && digits[0] == '5' {
		return digits, nil
	}

	// Last-resort recovery for oddly prefixed input.
	if len(digits) > 10 && digits[len(digits)-10] == '5' {
		return digits[len(digits)-10:], nil
	}

	return "", ErrNormalization
}
