package router

import (
	"regexp"
	"strings"

	"github.com/jbctechsolutions/intent-router/config"
	"github.com/jbctechsolutions/intent-router/language"
)

// Fallback is the deterministic regex classifier engaged when the primary
// capability is unavailable or times out. It is total: every request maps to
// an intent, and every prediction carries FallbackUsed=true.
type Fallback struct {
	rules []compiledFallbackRule
}

type compiledFallbackRule struct {
	name      string
	intent    string
	re        *regexp.Regexp
	reasoning string
}

// NewFallback compiles the ordered rule table once at construction; the
// rules are immutable thereafter and evaluated first-match-wins in
// declaration order. Config.Validate checks every pattern before
// construction, so an uncompilable pattern here is a programmer error and
// panics.
func NewFallback(specs []config.FallbackRule) *Fallback {
	f := &Fallback{}
	for _, rule := range specs {
		f.rules = append(f.rules, compiledFallbackRule{
			name:      rule.Name,
			intent:    rule.Intent,
			re:        regexp.MustCompile("(?i)" + rule.Pattern),
			reasoning: rule.Reasoning,
		})
	}
	return f
}

// Route classifies a single request offline. reason is the string form of
// the failure that triggered the fallback, preserved in metadata for audit.
func (f *Fallback) Route(req *Request, lang language.Context, reason string) Prediction {
	normalized := strings.ToLower(strings.TrimSpace(req.Text))

	for _, rule := range f.rules {
		if rule.re.MatchString(normalized) {
			return Prediction{
				Intent:       rule.intent,
				Confidence:   0.75,
				Reasoning:    rule.reasoning,
				Language:     lang.Code,
				FallbackUsed: true,
				Metadata: map[string]any{
					"fallback_rule":                rule.name,
					"fallback_reason":              reason,
					"language_detector_confidence": lang.Confidence,
				},
			}
		}
	}

	return Prediction{
		Intent:       generalIntent,
		Confidence:   0.45,
		Reasoning:    "Default fallback route engaged",
		Language:     lang.Code,
		FallbackUsed: true,
		Metadata: map[string]any{
			"fallback_rule":                "default",
			"fallback_reason":              reason,
			"language_detector_confidence": lang.Confidence,
		},
	}
}
