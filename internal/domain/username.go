package domain

import (
	"strings"

	"github.com/sketchdash/sketchdash/internal/infrastructure/validate"
)

var validateUsername = validate.Compose(
	validate.Required(),
	validate.LengthBetween(3, 15),
	// Letters, digits, space, hyphen, underscore only
	validate.Matches(`^[a-zA-Z0-9 _-]+$`,
		"username can only contain letters, digits, spaces, hyphens, and underscores"),
)

// ValidateUsername checks the display name a participant joins with.
// The trimmed name is returned on success.
func ValidateUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := validateUsername(name); err != nil {
		return "", err
	}
	return name, nil
}
