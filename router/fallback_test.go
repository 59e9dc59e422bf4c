package router

import (
	"testing"

	"github.com/jbctechsolutions/intent-router/config"
	"github.com/jbctechsolutions/intent-router/language"
)

func enContext() language.Context {
	return language.Context{Code: "en", Confidence: 0.3, Source: language.DetectorSource}
}

func TestFallbackRulePrecedence(t *testing.T) {
	f := NewFallback(config.Default().FallbackRules)

	// Billing is declared before security, so a text hitting both lexicons
	// resolves to billing.
	pred := f.Route(&Request{Text: "my invoice is wrong and my password expired"}, enContext(), "offline")
	if pred.Intent != "billing_support" {
		t.Errorf("intent = %s, want billing_support", pred.Intent)
	}
	if pred.Metadata["fallback_rule"] != "billing" {
		t.Errorf("fallback_rule = %v, want billing", pred.Metadata["fallback_rule"])
	}
}

func TestFallbackMatchesEachRule(t *testing.T) {
	f := NewFallback(config.Default().FallbackRules)

	tests := []struct {
		text       string
		wantIntent string
		wantRule   string
	}{
		{"I want a refund", "billing_support", "billing"},
		{"my login is broken", "account_security", "security"},
		{"I need pricing details for enterprise tier", "sales_inquiry", "sales"},
		{"there is a bug in the export", "technical_support", "technical"},
		{"please cancel my subscription", "general_inquiry", "cancellation"},
	}

	for _, tt := range tests {
		t.Run(tt.wantRule, func(t *testing.T) {
			pred := f.Route(&Request{Text: tt.text}, enContext(), "model timed out")
			if pred.Intent != tt.wantIntent {
				t.Errorf("intent = %s, want %s", pred.Intent, tt.wantIntent)
			}
			if pred.Metadata["fallback_rule"] != tt.wantRule {
				t.Errorf("fallback_rule = %v, want %s", pred.Metadata["fallback_rule"], tt.wantRule)
			}
			if pred.Confidence != 0.75 {
				t.Errorf("confidence = %v, want 0.75", pred.Confidence)
			}
			if !pred.FallbackUsed {
				t.Error("fallback predictions must set FallbackUsed")
			}
		})
	}
}

func TestFallbackDefaultRoute(t *testing.T) {
	f := NewFallback(config.Default().FallbackRules)

	pred := f.Route(&Request{Text: "completely unrelated chatter"}, enContext(), "offline weights unavailable")
	if pred.Intent != "general_inquiry" {
		t.Errorf("intent = %s, want general_inquiry", pred.Intent)
	}
	if pred.Confidence != 0.45 {
		t.Errorf("confidence = %v, want 0.45", pred.Confidence)
	}
	if pred.Metadata["fallback_rule"] != "default" {
		t.Errorf("fallback_rule = %v, want default", pred.Metadata["fallback_rule"])
	}
}

func TestFallbackPreservesReasonAndLanguage(t *testing.T) {
	f := NewFallback(config.Default().FallbackRules)

	lang := language.Context{Code: "es", Confidence: 0.66, Source: language.DetectorSource}
	pred := f.Route(&Request{Text: "necesito mi factura"}, lang, "offline weights unavailable")

	if pred.Metadata["fallback_reason"] != "offline weights unavailable" {
		t.Errorf("fallback_reason = %v", pred.Metadata["fallback_reason"])
	}
	if pred.Metadata["language_detector_confidence"] != 0.66 {
		t.Errorf("language_detector_confidence = %v, want 0.66", pred.Metadata["language_detector_confidence"])
	}
	if pred.Language != "es" {
		t.Errorf("language = %s, want es", pred.Language)
	}
}
