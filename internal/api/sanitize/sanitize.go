// Package sanitize strips markup from request-supplied strings before they
// reach the database or the logs.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text removes all HTML and trims surrounding whitespace.
func Text(s string) string {
	return strings.TrimSpace(policy.Sanitize(s))
}
