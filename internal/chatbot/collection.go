package chatbot

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MatchTrigger returns the first field, in declaration order, that has not
// been collected yet and whose trigger phrases occur in text.
func MatchTrigger(text string, tpl *TemplatePrompt, collected map[string]string) (string, bool) {
	if tpl == nil {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, f := range tpl.DataCollectionFields {
		if _, have := collected[f.Name]; have {
			continue
		}
		for _, phrase := range f.TriggerPhrases {
			if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
				return f.Name, true
			}
		}
	}
	return "", false
}

// NextRequiredMissing returns the first required field absent from collected.
func NextRequiredMissing(tpl *TemplatePrompt, collected map[string]string) (string, bool) {
	if tpl == nil {
		return "", false
	}
	for _, f := range tpl.DataCollectionFields {
		if !f.Required {
			continue
		}
		if _, have := collected[f.Name]; !have {
			return f.Name, true
		}
	}
	return "", false
}

// Validate checks a submitted value for the named field.
func Validate(field, value string) bool {
	value = strings.TrimSpace(value)
	switch field {
	case "email":
		return emailPattern.MatchString(value)
	case "phone":
		return countDigits(value) >= 10
	default:
		return value != ""
	}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
