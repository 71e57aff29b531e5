package helpers

import (
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// TopicMinLen and TopicMaxLen bound a sanitized research topic.
const (
	TopicMinLen = 3
	TopicMaxLen = 500
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every
// HTML element and attribute, leaving plain text.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// SanitizeTopic cleans a user-supplied research topic: HTML is stripped,
// control characters are removed, and runs of whitespace collapse to single
// spaces.
func SanitizeTopic(s string) string {
	s = StrictHTMLPolicy().Sanitize(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ValidTopic reports whether a sanitized topic is within length bounds.
func ValidTopic(s string) bool {
	n := len([]rune(s))
	return n >= TopicMinLen && n <= TopicMaxLen
}
