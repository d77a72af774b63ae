// Package validator normalizes guest contact details before they reach
// storage or the SMS gateway.
package validator

import (
	"errors"
	"strings"
)

// Contact numbers arrive in whatever shape the booking form produced:
// "+44 20 7946 0958", "0033 1 42 68 53 00", "(415) 555-0134". Storage and
// the SMS gateway both want one canonical shape, so every accepted number
// is normalized to E.164: a plus sign followed by 8 to 15 digits.
//
// Validation is structural only. Whether a number is actually reachable is
// the SMS gateway's problem, reported per send.

var (
	// ErrPhoneEmpty is returned when the input is blank.
	ErrPhoneEmpty = errors.New("phone number is empty")

	// ErrPhoneBadCharacter is returned when the input contains anything
	// beyond digits, a leading plus, and common separators.
	ErrPhoneBadCharacter = errors.New("phone number contains invalid characters")

	// ErrPhoneNoCountryCode is returned for numbers in a purely national
	// format. Guests book across borders, so a bare local number is
	// ambiguous and rejected rather than guessed at.
	ErrPhoneNoCountryCode = errors.New("phone number must include a country code (+ or 00 prefix)")

	// ErrPhoneLength is returned when the digit count falls outside the
	// E.164 envelope.
	ErrPhoneLength = errors.New("phone number must have between 8 and 15 digits including the country code")
)

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// phoneSeparators are stripped from input instead of failing it. Anything
// not listed here and not a digit fails validation, so a pasted email or
// free-text note never slips through as a phone number.
const phoneSeparators = " \t-()./ "

type PhoneValidator struct{}

func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate normalizes raw into E.164 form. On success the returned string
// is always "+" followed by the significant digits.
func (v *PhoneValidator) Validate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrPhoneEmpty
	}

	international := strings.HasPrefix(trimmed, "+")
	if international {
		trimmed = trimmed[1:]
	}

	var digits strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case strings.ContainsRune(phoneSeparators, r):
			// separator noise from the form, dropped
		default:
			return "", ErrPhoneBadCharacter
		}
	}
	number := digits.String()

	// "00" is the ITU international dialing prefix, equivalent to "+".
	if !international && strings.HasPrefix(number, "00") {
		number = number[2:]
		international = true
	}

	if !international || strings.HasPrefix(number, "0") {
		return "", ErrPhoneNoCountryCode
	}
	if len(number) < minPhoneDigits || len(number) > maxPhoneDigits {
		return "", ErrPhoneLength
	}

	return "+" + number, nil
}

// IsValid reports whether raw would survive Validate.
func (v *PhoneValidator) IsValid(raw string) bool {
	_, err := v.Validate(raw)
	return err == nil
}
