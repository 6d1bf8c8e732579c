package facts

import (
	"strings"
)

// Rule names one durable statement a corpus can make. Extraction fires on a
// sentence containing every term; the sentence itself becomes the fact value,
// so the table carries no corpus content of its own. Triggers map an incoming
// question onto the keys it asks for.
type Rule struct {
	Key        string
	Terms      []string
	Triggers   []string
	Confidence float64
}

// Extracted is one fact pulled out of chunk text, before it gets a row id.
type Extracted struct {
	Key        string
	Value      string
	Confidence float64
}

// DefaultRules covers the operational vocabulary uploads tend to state
// directly: infrastructure, resilience, security posture, support terms.
func DefaultRules() []Rule {
	return []Rule{
		{Key: "infra.cloud_provider", Terms: []string{"cloud provider"}, Triggers: []string{"cloud provider", "which cloud"}, Confidence: 0.9},
		{Key: "infra.regions", Terms: []string{"primary region"}, Triggers: []string{"region", "hosted"}, Confidence: 0.85},
		{Key: "resilience.rto", Terms: []string{"rto"}, Triggers: []string{"rto", "recovery time"}, Confidence: 0.92},
		{Key: "resilience.rpo", Terms: []string{"rpo"}, Triggers: []string{"rpo", "recovery point"}, Confidence: 0.92},
		{Key: "resilience.backups", Terms: []string{"backup"}, Triggers: []string{"backup", "backups"}, Confidence: 0.8},
		{Key: "security.mfa", Terms: []string{"mfa"}, Triggers: []string{"mfa", "multi-factor"}, Confidence: 0.9},
		{Key: "security.access_model", Terms: []string{"rbac"}, Triggers: []string{"rbac", "role-based", "access control"}, Confidence: 0.85},
		{Key: "security.encryption", Terms: []string{"encrypted"}, Triggers: []string{"encrypted", "encryption"}, Confidence: 0.85},
		{Key: "compliance.certifications", Terms: []string{"soc 2"}, Triggers: []string{"soc 2", "compliance", "certified"}, Confidence: 0.9},
		{Key: "support.sla", Terms: []string{"sla"}, Triggers: []string{"sla", "support hours"}, Confidence: 0.85},
	}
}

// Extract scans chunk text sentence by sentence. One fact per key at most:
// the first matching sentence wins, later matches in the same text are noise.
func Extract(text string, rules []Rule) []Extracted {
	sentences := splitSentences(text)
	seen := make(map[string]bool, len(rules))

	var out []Extracted
	for _, sentence := range sentences {
		folded := fold(sentence)
		for _, rule := range rules {
			if seen[rule.Key] || !containsAll(folded, rule.Terms) {
				continue
			}
			seen[rule.Key] = true
			out = append(out, Extracted{Key: rule.Key, Value: strings.TrimSpace(sentence), Confidence: rule.Confidence})
		}
	}
	return out
}

// KeysForQuery lists the fact keys a question asks for, deduplicated in rule
// order. An empty result means the question is not fact-shaped.
func KeysForQuery(query string, rules []Rule) []string {
	folded := fold(query)
	var keys []string
	for _, rule := range rules {
		for _, trigger := range rule.Triggers {
			if strings.Contains(folded, trigger) {
				keys = append(keys, rule.Key)
				break
			}
		}
	}
	return keys
}

// fold lowercases and collapses whitespace so multi-word terms match across
// line breaks.
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsAll(folded string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(folded, term) {
			return false
		}
	}
	return len(terms) > 0
}

const maxSentenceLen = 400

func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			if len(s) > maxSentenceLen {
				s = s[:maxSentenceLen]
			}
			sentences = append(sentences, s)
		}
		b.Reset()
	}
	for _, r := range text {
		switch r {
		case '\n', '!', '?':
			flush()
		case '.':
			b.WriteRune(r)
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return sentences
}
