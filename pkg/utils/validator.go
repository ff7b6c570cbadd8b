package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxCommentLength bounds trail comments
const MaxCommentLength = 2000

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@:\-]{0,127}$`)
	controlRegex    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateIdentifier validates a tenant, user or record identifier
func ValidateIdentifier(kind, id string) error {
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("invalid %s identifier: %q", kind, id)
	}
	return nil
}

// SanitizeComment removes control characters except newlines and tabs,
// trims surrounding space and truncates to MaxCommentLength runes
func SanitizeComment(s string) string {
	sanitized := strings.TrimSpace(controlRegex.ReplaceAllString(s, ""))
	if runes := []rune(sanitized); len(runes) > MaxCommentLength {
		sanitized = string(runes[:MaxCommentLength])
	}
	return sanitized
}
