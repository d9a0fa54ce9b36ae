package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxCleanPasses bounds the fixpoint loop in Clean; nested entity encodings
// deeper than this are stripped as markup on the next save anyway.
const maxCleanPasses = 4

// Sanitizer strips markup from user text. Output is plain text; escaping is
// left to the renderer.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean is idempotent: Clean(Clean(s)) == Clean(s). Unescaping can turn
// "&lt;b&gt;" into a tag, so the policy is reapplied until the text is stable.
// Stored values can then be sanitized again on every reducer pass without
// drifting.
func (s *Sanitizer) Clean(input string) string {
	out := input
	for i := 0; i < maxCleanPasses; i++ {
		next := s.pass(out)
		if next == out {
			return next
		}
		out = next
	}
	return out
}

func (s *Sanitizer) pass(input string) string {
	if input == "" {
		return input
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(input)))
}
