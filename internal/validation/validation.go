package validation

import (
	"errors"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from free-form text: lowercased, runs of
// non-alphanumeric characters collapsed to single hyphens, leading and
// trailing hyphens trimmed. Returns an empty string if nothing survives.
func Slugify(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	slug := nonSlugChars.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}

// ValidateProjectKey validates a short uppercase project key (e.g. "ACME").
func ValidateProjectKey(key string) error {
	if len(key) < 2 || len(key) > 10 {
		return errors.New("project key must be 2-10 characters")
	}
	for _, c := range key {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return errors.New("project key must contain only uppercase letters and digits")
		}
	}
	return nil
}
