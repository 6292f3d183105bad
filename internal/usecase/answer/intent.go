package answer

import (
	"fmt"
	"strings"
	"unicode"
)

var greetings = []string{
	"hi", "hello", "hey", "hola", "yo", "sup",
	"how are you", "good morning", "good afternoon", "good evening",
}

// maxGreetingWords keeps "hi, are bias audits required in NY?" on the policy path.
const maxGreetingWords = 4

var lawTerms = map[string]struct{}{
	"ai": {}, "bill": {}, "law": {}, "act": {}, "regulation": {}, "hiring": {},
	"privacy": {}, "biometric": {}, "automated": {}, "compliance": {}, "audit": {},
}

var generalTerms = map[string]struct{}{
	"how": {}, "what": {}, "why": {}, "explain": {}, "help": {}, "best": {},
	"tips": {}, "difference": {}, "compare": {}, "write": {}, "fix": {}, "error": {},
}

// employmentTerms widen policy questions toward automated hiring rules, which
// dominate the corpus.
var employmentTerms = []string{
	"automated hiring", "automated employment decision tools", "AEDT",
	"employment screening", "recruiting algorithms", "bias audit", "audit",
}

// IsGreeting reports whether msg is small talk that needs no retrieval.
func IsGreeting(msg string) bool {
	q := strings.ToLower(strings.TrimSpace(msg))
	if q == "" {
		return false
	}
	if len(q) <= 6 {
		for _, g := range greetings {
			if strings.HasPrefix(g, q) {
				return true
			}
		}
	}

	ws := words(q)
	if len(ws) == 0 || len(ws) > maxGreetingWords {
		return false
	}
	phrase := strings.Join(ws, " ")
	for _, g := range greetings {
		if phrase == g || strings.HasPrefix(phrase, g+" ") {
			return true
		}
	}
	return false
}

// looksGeneral reports a how-to style question with no legislative vocabulary.
func looksGeneral(msg string) bool {
	general := false
	for _, w := range words(strings.ToLower(msg)) {
		if _, ok := lawTerms[strings.TrimSuffix(w, "s")]; ok {
			return false
		}
		if _, ok := generalTerms[w]; ok {
			general = true
		}
	}
	return general
}

// AugmentQuery appends the jurisdiction and employment vocabulary to a policy
// question before retrieval. Greetings and general questions are returned trimmed.
func AugmentQuery(question, state string) string {
	q := strings.TrimSpace(question)
	if q == "" || IsGreeting(q) || looksGeneral(q) {
		return q
	}
	extra := strings.Join(employmentTerms, " ")
	if state = strings.TrimSpace(state); state != "" {
		return q + " in " + state + " " + extra
	}
	return q + " " + extra
}

// GreetingReply introduces the assistant with example questions for the user's
// state and industry.
func GreetingReply(state, industry string) string {
	st := strings.TrimSpace(state)
	if st == "" {
		st = "your state"
	}
	ind := strings.ToLower(strings.TrimSpace(industry))
	if ind == "" {
		ind = "your industry"
	}
	return strings.Join([]string{
		"Hi, I'm your AI policy explainer.",
		fmt.Sprintf("I can summarize AI bills and explain what they mean for employers in %s, in plain English.", st),
		"Ask me something specific, or try one of these:",
		fmt.Sprintf("- Do we need to disclose AI use to applicants in %s?", st),
		fmt.Sprintf("- Are bias audits required for automated hiring tools in %s?", st),
		fmt.Sprintf("- Any bills touching AI use for %s companies in %s?", ind, st),
	}, "\n")
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
