package valueobject

import (
	"fmt"
	"strings"
)

const maxScreenNameLen = 64

// ScreenName is an immutable, normalized screen identifier.
type ScreenName struct {
	value string
}

// NewScreenName validates and normalizes a screen name. Names are lower-case
// and may contain letters, digits, '-' and '_'.
func NewScreenName(value string) (ScreenName, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return ScreenName{}, fmt.Errorf("screen name must not be empty")
	}
	if len(trimmed) > maxScreenNameLen {
		return ScreenName{}, fmt.Errorf("screen name must be at most %d characters", maxScreenNameLen)
	}
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ScreenName{}, fmt.Errorf("screen name %q contains invalid character %q", trimmed, r)
		}
	}
	return ScreenName{value: trimmed}, nil
}

// String returns the string representation of the ScreenName.
func (n ScreenName) String() string {
	return n.value
}

// Equals checks equality with another ScreenName.
func (n ScreenName) Equals(other ScreenName) bool {
	return n.value == other.value
}
