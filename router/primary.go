package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jbctechsolutions/intent-router/config"
	"github.com/jbctechsolutions/intent-router/language"
)

// generalIntent is the catch-all label both classifiers resolve to when no
// specific lexicon matches.
const generalIntent = "general_inquiry"

// Classifier is the primary classification capability. Given a batch of
// requests with their detected languages it either returns one prediction
// per request in input order, or fails with ErrModelUnavailable, ErrTimeout
// (or a context deadline), or a *ContentViolationError. The service treats
// it as replaceable, so a real inference backend can be swapped in without
// touching the orchestration.
type Classifier interface {
	Classify(ctx context.Context, reqs []*Request, langs []language.Context) ([]Prediction, error)
}

// guardrailPattern is the financial-advice solicitation lexicon. A hit is a
// policy decision, not an availability failure, and always aborts the call.
var guardrailPattern = regexp.MustCompile(`(?i)financial advice|stock tip|investment recommendation|crypto pick`)

// LexicalModel is the offline stand-in for the quantized local intent model.
// It matches truncated request text against the configured ordered pattern
// table, so the whole pipeline stays deterministic without network access.
type LexicalModel struct {
	cfg      *config.Config
	patterns []compiledIntentPattern
}

type compiledIntentPattern struct {
	intent string
	re     *regexp.Regexp
}

// NewLexicalModel compiles the configured intent patterns once so Classify
// is cheap. Config.Validate checks every pattern before construction, so an
// uncompilable pattern here is a programmer error and panics.
func NewLexicalModel(cfg *config.Config) *LexicalModel {
	m := &LexicalModel{cfg: cfg}
	for _, p := range cfg.IntentPatterns {
		m.patterns = append(m.patterns, compiledIntentPattern{
			intent: p.Intent,
			re:     regexp.MustCompile("(?i)" + p.Pattern),
		})
	}
	return m
}

// Classify produces one prediction per request, in input order. In offline
// mode it fails for the whole batch before any per-item work. Text is
// truncated to max_prompt_chars before the guardrail scan and intent match.
func (m *LexicalModel) Classify(ctx context.Context, reqs []*Request, langs []language.Context) ([]Prediction, error) {
	if m.cfg.OfflineMode {
		return nil, fmt.Errorf("offline mode enforced; model skipped: %w", ErrModelUnavailable)
	}

	predictions := make([]Prediction, 0, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lang := langs[i]
		truncated := truncate(strings.TrimSpace(req.Text), m.cfg.MaxPromptChars)
		if hit := guardrailPattern.FindString(truncated); hit != "" {
			return nil, &ContentViolationError{Matched: hit}
		}

		intent, reasoning := m.inferIntent(truncated)
		confidence := 0.9
		if intent == generalIntent {
			confidence = 0.6
		}

		prompt := m.buildPrompt(req.Text, lang.Code)
		predictions = append(predictions, Prediction{
			Intent:       intent,
			Confidence:   confidence,
			Reasoning:    reasoning,
			Language:     lang.Code,
			FallbackUsed: false,
			Metadata: map[string]any{
				"language_detector_confidence": lang.Confidence,
				"prompt_excerpt":               truncate(prompt, 160),
				"model_path":                   m.cfg.ModelPath,
				"classification_labels":        append([]string(nil), m.cfg.ClassificationLabels...),
			},
		})
	}
	return predictions, nil
}

// inferIntent walks the ordered pattern table; first match wins. The
// trailing catch-all keeps this total, but the guard below covers a table
// configured without one.
func (m *LexicalModel) inferIntent(text string) (string, string) {
	for _, p := range m.patterns {
		if p.re.MatchString(text) {
			return p.intent, fmt.Sprintf("Matched lexical pattern %q", p.re.String())
		}
	}
	return generalIntent, "No high-confidence lexical match"
}

// buildPrompt assembles the classification prompt the real model would
// receive. Only an excerpt of it is kept, in prediction metadata, for audit.
func (m *LexicalModel) buildPrompt(text, langCode string) string {
	labels := strings.Join(m.cfg.ClassificationLabels, ", ")
	return "System: You are Qwen-30B operating fully offline with local weights." +
		" Classify the provided utterance into one of the following intents: " +
		labels + ". Only return the canonical intent name and reasoning. " +
		"User language=" + langCode + ". Utterance: ```" + text + "```"
}

// truncate cuts s to at most n runes. Rune-based so multi-byte text is never
// split mid-character.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
