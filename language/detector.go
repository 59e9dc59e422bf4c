package language

import "strings"

// DetectorSource identifies the offline heuristic detector in telemetry and
// output metadata.
const DetectorSource = "lexical-offline"

// Context is the detected language for a single routing request. It is
// created fresh inside each routing call and never persisted.
type Context struct {
	Code       string
	Confidence float64
	Source     string
}

// Detector maps raw text to a two-letter language code using fixed keyword
// and character tables. It is a heuristic lookup, not a statistical model:
// the same text and tables always produce the same Context.
type Detector struct {
	keywords    map[string][]string
	uniqueChars map[string][]string
	order       []string
}

// charWeight is how much a single language-unique character counts relative
// to a keyword hit.
const charWeight = 1.5

var defaultKeywords = map[string][]string{
	"en": {"help", "billing", "password", "support", "upgrade", "cancel"},
	"es": {"factura", "ayuda", "contraseña", "soporte", "precio", "cancelar"},
	"fr": {"facture", "assistance", "mot de passe", "prix"},
	"de": {"rechnung", "hilfe", "kennwort", "preis"},
	"zh": {"价格", "帮助", "支持", "发票"},
}

var defaultUniqueChars = map[string][]string{
	"es": {"ñ", "á", "é", "í", "ó", "ú"},
	"fr": {"à", "ç", "è", "é", "ù"},
	"de": {"ä", "ö", "ü", "ß"},
	"zh": {"你", "们", "客", "户"},
}

// enumeration order decides ties; English first so it wins when nothing
// scores.
var defaultOrder = []string{"en", "es", "fr", "de", "zh"}

// NewDetector returns a Detector backed by the built-in keyword and
// character tables.
func NewDetector() *Detector {
	return &Detector{
		keywords:    defaultKeywords,
		uniqueChars: defaultUniqueChars,
		order:       defaultOrder,
	}
}

// Detect scores every supported language against text and returns the best
// match. It is total: empty or whitespace-only input yields English with
// zero confidence.
func (d *Detector) Detect(text string) Context {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Context{Code: "en", Confidence: 0.0, Source: DetectorSource}
	}

	bestCode := "en"
	bestScore := -1.0

	for _, code := range d.order {
		keywordScore := 0.0
		for _, kw := range d.keywords[code] {
			if strings.Contains(normalized, kw) {
				keywordScore++
			}
		}
		charScore := 0.0
		for _, ch := range d.uniqueChars[code] {
			if strings.Contains(normalized, ch) {
				charScore++
			}
		}
		combined := keywordScore + charScore*charWeight
		if combined > bestScore {
			bestScore = combined
			bestCode = code
		}
	}

	maxPossible := float64(len(d.keywords[bestCode])) + float64(len(d.uniqueChars[bestCode]))*charWeight
	confidence := 0.0
	if maxPossible > 0 {
		confidence = bestScore / maxPossible
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	return Context{Code: bestCode, Confidence: confidence, Source: DetectorSource}
}
