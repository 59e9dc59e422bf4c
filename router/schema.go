package router

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// languagePattern accepts lowercase ISO-639-1 codes only.
var languagePattern = regexp.MustCompile(`^[a-z]{2}$`)

// ValidateOutput enforces the output contract. It is the hard gate every
// caller-visible record passes through: the first unmet requirement is
// returned as a *SchemaError and the routing call aborts. Checks run in the
// contract's declared order.
func ValidateOutput(out *Output) error {
	if out == nil {
		return &SchemaError{Field: "output", Reason: "is missing"}
	}
	if len(strings.TrimSpace(out.Intent)) < 3 {
		return &SchemaError{Field: "intent", Reason: "must be a string of at least 3 characters"}
	}
	if math.IsNaN(out.Confidence) || out.Confidence < 0 || out.Confidence > 1 {
		return &SchemaError{Field: "confidence", Reason: "must be between 0 and 1"}
	}
	if !languagePattern.MatchString(out.Language) {
		return &SchemaError{Field: "language", Reason: "must be a valid ISO-639-1 code"}
	}
	if strings.TrimSpace(out.Reasoning) == "" {
		return &SchemaError{Field: "reasoning", Reason: "must be supplied"}
	}
	if _, err := time.Parse(time.RFC3339, out.Timestamp); err != nil {
		return &SchemaError{Field: "timestamp", Reason: "must be RFC 3339 formatted"}
	}
	if len(strings.TrimSpace(out.RouterVersion)) < 3 {
		return &SchemaError{Field: "router_version", Reason: "must describe the deployed model"}
	}
	if out.Metadata == nil {
		return &SchemaError{Field: "metadata", Reason: "must be an object"}
	}
	return nil
}
