package security

import (
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// IsValidUsername reports whether name satisfies the display name rule:
// 3-20 characters, letters, digits, and underscores only.
func IsValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// SanitizeInput trims whitespace and strips angle brackets from
// user-supplied strings before they reach display or storage.
func SanitizeInput(input string) string {
	out := strings.TrimSpace(input)
	out = strings.ReplaceAll(out, "<", "")
	out = strings.ReplaceAll(out, ">", "")
	return out
}
