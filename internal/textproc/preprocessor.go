// Package textproc cleans raw diary text, redacts PII, and produces the
// normalized form used for HistoryStore keys and cache fingerprints.
// It is stateless aside from its compiled patterns, mirroring
// services/preprocessor.py.
package textproc

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	punctRunRe    = regexp.MustCompile(`[!?.,]{4,}`)
	emailRe       = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneFallback = regexp.MustCompile(`\+?\d{1,4}[-.\s]?\(?\d{2,4}\)?(?:[-.\s]?\d{2,4}){1,4}`)
	passportRe    = regexp.MustCompile(`\b\d{4}\s?\d{6}\b`)
	cardRe        = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)
	innRe         = regexp.MustCompile(`(?i)(^|\W)ИНН:?\s*\d{10,12}\b`)
	nonWordRe     = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	sentenceSplit = regexp.MustCompile(`[.!?]+\s+`)
)

// Preprocessor cleans text and optionally redacts PII before it reaches the
// parsers. It holds no mutable state.
type Preprocessor struct {
	RedactionEnabled bool
}

// New builds a Preprocessor with PII redaction toggled per settings.
func New(redactionEnabled bool) *Preprocessor {
	return &Preprocessor{RedactionEnabled: redactionEnabled}
}

// Preprocess cleans whitespace/punctuation and, if enabled, redacts PII.
// Empty input yields empty output.
func (p *Preprocessor) Preprocess(text string) string {
	if text == "" {
		return ""
	}
	cleaned := clean(text)
	if p.RedactionEnabled {
		cleaned = redactPII(cleaned)
	}
	return cleaned
}

func clean(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = punctRunRe.ReplaceAllStringFunc(text, func(run string) string {
		last := run[len(run)-1:]
		return last + last + last
	})
	return strings.TrimSpace(text)
}

// redactPII replaces emails, phone numbers, passport-like, card-like, and
// ИНН-prefixed numeric sequences with their placeholder tokens, in that
// order (spec §4.A).
func redactPII(text string) string {
	text = emailRe.ReplaceAllString(text, "<EMAIL>")
	text = redactPhones(text)
	text = passportRe.ReplaceAllString(text, "<PASSPORT>")
	text = cardRe.ReplaceAllString(text, "<CARD>")
	text = innRe.ReplaceAllString(text, "${1}<INN>")
	return text
}

// redactPhones tries the locale-aware (Russia-biased) phone number matcher
// first: permissive-regex candidates are validated with phonenumbers before
// being redacted. Any panic from the parser falls back to blindly redacting
// every candidate with the permissive regex, matching the try/except
// behavior of the original Python preprocessor.
func redactPhones(text string) string {
	if out, ok := tryMatchPhones(text); ok {
		return out
	}
	return phoneFallback.ReplaceAllString(text, "<PHONE>")
}

func tryMatchPhones(text string) (out string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	result := text
	for _, raw := range phoneFallback.FindAllString(text, -1) {
		num, err := phonenumbers.Parse(raw, "RU")
		if err != nil || !phonenumbers.IsValidNumber(num) {
			continue
		}
		result = strings.ReplaceAll(result, raw, "<PHONE>")
	}
	return result, true
}

// NormalizeText lowercases, strips punctuation, and collapses whitespace.
// Used for HistoryStore keys and cache fingerprints.
func NormalizeText(text string) string {
	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitSentences is a utility for splitting text into rough sentences. It
// is not on the analysis hot path.
func SplitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
