package helper

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\-]+`)
	slugDashRuns     = regexp.MustCompile(`-{2,}`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
)

// Slugify creates a URL-friendly slug from an event title with a short random suffix,
// so two events with the same title never share a slug.
func Slugify(text string) string {
	suffix := uuid.NewString()[:6]

	slug := strings.ToLower(strings.TrimSpace(text))
	slug = slugWhitespace.ReplaceAllString(slug, "-")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugDashRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
