package entity

import (
	"fmt"
	"strings"

	"github.com/ruudy-sib/resync/internal/domain"
)

// VisibilityState mirrors the hosting page's visibility.
type VisibilityState string

const (
	Visible VisibilityState = "visible"
	Hidden  VisibilityState = "hidden"
)

// ParseVisibility parses "visible" or "hidden", ignoring case.
func ParseVisibility(s string) (VisibilityState, error) {
	switch VisibilityState(strings.ToLower(strings.TrimSpace(s))) {
	case Visible:
		return Visible, nil
	case Hidden:
		return Hidden, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidVisibility, s)
	}
}
