// Package validator provides input validation and normalization functions
// for patient-facing identifiers and search terms.
package validator

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Validation errors
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrInvalidDNI       = errors.New("invalid DNI format")
	ErrInvalidPhone     = errors.New("invalid phone format")
	ErrInputTooLong     = errors.New("input exceeds maximum length")
	ErrEmptyInput       = errors.New("input cannot be empty")
)

// Regex patterns for validation
var (
	// DNI: 7 to 10 digits after normalization
	dniRegex = regexp.MustCompile(`^[0-9]{7,10}$`)

	// Phone: optional leading +, then 6 to 15 digits after normalization
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

	nonDigitRegex = regexp.MustCompile(`[^0-9]`)

	phoneStripRegex = regexp.MustCompile(`[\s().-]`)
)

// accentStripper decomposes characters and removes combining marks, so
// "Pérez" and "Perez" normalize to the same search key.
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeDNI strips everything but digits from a DNI ("28.456.789" →
// "28456789").
func NormalizeDNI(dni string) string {
	return nonDigitRegex.ReplaceAllString(strings.TrimSpace(dni), "")
}

// ValidateDNI checks a DNI after normalization.
func ValidateDNI(dni string) error {
	normalized := NormalizeDNI(dni)
	if normalized == "" {
		return ErrEmptyInput
	}
	if !dniRegex.MatchString(normalized) {
		return ErrInvalidDNI
	}
	return nil
}

// NormalizePhone removes separators and spaces, keeping a leading +.
func NormalizePhone(phone string) string {
	return phoneStripRegex.ReplaceAllString(strings.TrimSpace(phone), "")
}

// ValidatePhone checks a phone number after normalization. Empty input is
// accepted; phone is an optional field.
func ValidatePhone(phone string) error {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return nil
	}
	if !phoneRegex.MatchString(normalized) {
		return ErrInvalidPhone
	}
	return nil
}

// ValidateEmail validates email address format according to RFC 5322.
// Empty input is accepted; email is an optional field.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}

	// RFC 5321 specifies max email length of 254 characters
	if utf8.RuneCountInString(email) > 254 {
		return ErrInputTooLong
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// StripAccents removes diacritical marks ("María" → "Maria"). Input that
// fails to transform is returned unchanged.
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeSearchTerm folds a search term for accent- and case-insensitive
// matching: accents stripped, lowercased, whitespace collapsed.
func NormalizeSearchTerm(term string) string {
	term = StripAccents(strings.TrimSpace(term))
	term = strings.ToLower(term)
	return strings.Join(strings.Fields(term), " ")
}

// SanitizeText trims a free-text field and enforces a length ceiling.
func SanitizeText(s string, maxLen int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxLen {
		return "", ErrInputTooLong
	}
	return s, nil
}
