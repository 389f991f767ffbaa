// Package plate normalizes and validates Swedish license plates as entered by users.
package plate

import (
	"errors"
	"regexp"
	"strings"
)

// Length is the exact number of characters of a normalized plate.
const Length = 6

var (
	// ErrLength is returned when the normalized plate is not exactly Length characters.
	ErrLength = errors.New("Registreringsnummer måste vara exakt 6 tecken")
	// ErrPattern is returned when the normalized plate contains anything but A-Z and 0-9.
	ErrPattern = errors.New("Ogiltigt registreringsnummer. Använd endast A-Z och 0-9")

	nonAlphanumeric = regexp.MustCompile(`[^A-Z0-9]`)
	platePattern    = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

// Normalize upper-cases the input, strips everything but A-Z and 0-9 and
// truncates the result to Length characters.
func Normalize(input string) string {
	normalized := nonAlphanumeric.ReplaceAllString(strings.TrimSpace(strings.ToUpper(input)), "")
	if len(normalized) > Length {
		normalized = normalized[:Length]
	}
	return normalized
}

// Validate checks an already normalized plate.
func Validate(normalized string) error {
	if len(normalized) != Length {
		return ErrLength
	}
	if !platePattern.MatchString(normalized) {
		return ErrPattern
	}
	return nil
}

// Parse normalizes and validates input in one step.
func Parse(input string) (string, error) {
	normalized := Normalize(input)
	if err := Validate(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
