package nlu

import (
	"regexp"
	"strings"
)

// Intent is the calendar operation a message asks for.
type Intent string

// Supported intents.
const (
	IntentBook    Intent = "book"
	IntentCancel  Intent = "cancel"
	IntentEdit    Intent = "edit"
	IntentList    Intent = "list"
	IntentCheck   Intent = "check"
	IntentHelp    Intent = "help"
	IntentUnknown Intent = "unknown"
)

// String returns the intent name.
func (i Intent) String() string {
	return string(i)
}

// intentRule maps a group of keywords to the intent they select.
type intentRule struct {
	intent   Intent
	keywords []string
}

// intentRules is evaluated top to bottom; the first rule with a matching keyword wins.
// Destructive and modifying verbs come first so that "change my meeting" is never
// read as a booking request.
var intentRules = []intentRule{
	{IntentCancel, []string{"cancel", "delete", "remove"}},
	{IntentEdit, []string{"edit", "reschedule", "move", "change"}},
	{IntentBook, []string{"book", "schedule", "set up", "add"}},
	{IntentList, []string{"list", "show", "what", "upcoming", "events", "history", "held"}},
	{IntentCheck, []string{"free", "available", "slot"}},
	{IntentHelp, []string{"help", "how"}},
}

type compiledRule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

var compiledRules = compileRules(intentRules)

func compileRules(rules []intentRule) []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{intent: r.intent}
		for _, kw := range r.keywords {
			cr.patterns = append(cr.patterns, regexp.MustCompile(keywordPattern(kw)))
		}
		out = append(out, cr)
	}
	return out
}

// keywordPattern builds a whole-word pattern for kw that also accepts the common
// inflections ("books", "booked", "booking", "cancelled", "moving").
func keywordPattern(kw string) string {
	stem := strings.ReplaceAll(regexp.QuoteMeta(kw), " ", `\s+`)
	forms := stem + `(?:s|es|d|ed|led|ing|ling)?`
	if strings.HasSuffix(kw, "e") {
		forms = "(?:" + forms + "|" + regexp.QuoteMeta(strings.TrimSuffix(kw, "e")) + "ing)"
	}
	return `(?i)\b` + forms + `\b`
}

// Classify maps a message to an intent using the static keyword tables.
// It is deterministic and has no side effects.
func Classify(message string) Intent {
	if strings.TrimSpace(message) == "" {
		return IntentUnknown
	}
	for _, rule := range compiledRules {
		for _, p := range rule.patterns {
			if p.MatchString(message) {
				return rule.intent
			}
		}
	}
	return IntentUnknown
}
