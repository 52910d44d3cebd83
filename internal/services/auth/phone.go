package auth

import (
	"fmt"
	"strings"
)

// NormalizePhone reduces a phone number to +<digits> form. Spaces,
// dashes, dots and parentheses are tolerated; anything else fails.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("phone is empty: %w", ErrInvalidInput)
	}

	var digits strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("phone has invalid character: %w", ErrInvalidInput)
		}
	}

	number := digits.String()
	if len(number) < 7 || len(number) > 15 {
		return "", fmt.Errorf("phone length out of range: %w", ErrInvalidInput)
	}

	return "+" + number, nil
}
