package chatbot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTurnInProgress = errors.New("a response is already being generated")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoChatbot      = errors.New("chatbot is not configured")

	errNotConfigured = errors.New("collaborator not configured")
)

// Policy holds the fixed business rules and user-facing copy of a turn.
type Policy struct {
	IrrelevanceThreshold float64
	HistoryWindow        int
	RetrievalTopK        int
	SentimentWindow      int // prior user messages analyzed with the current one
	SentimentHistoryCap  int

	WelcomeText    string
	EmpathyText    string
	RedirectText   string
	ApologyText    string
	ThankYouText   string
	CollectStart   string // %s is the field label
	CollectNext    string // %s is the field label
	InvalidEmail   string
	InvalidPhone   string
	InvalidDefault string // %s is the field label
}

func DefaultPolicy() Policy {
	return Policy{
		IrrelevanceThreshold: 0.7,
		HistoryWindow:        5,
		RetrievalTopK:        5,
		SentimentWindow:      4,
		SentimentHistoryCap:  5,

		WelcomeText:    "Hello! I'm your AI assistant. How can I help you today?",
		EmpathyText:    "I understand this might be frustrating. Let me do my best to help you with this issue.",
		RedirectText:   "I'm designed to help with specific topics related to our services. Could you please ask a question that's more relevant to what I can assist you with?",
		ApologyText:    "I apologize, but I'm experiencing some technical difficulties. Please try again later.",
		ThankYouText:   "Thank you for providing your information. I'll use this to better assist you. How else can I help you today?",
		CollectStart:   "I'd be happy to help you with that. Could you please provide your %s?",
		CollectNext:    "Thank you. Could you also provide your %s?",
		InvalidEmail:   "Please enter a valid email address.",
		InvalidPhone:   "Please enter a valid phone number.",
		InvalidDefault: "Please provide your %s.",
	}
}

// withDefaults fills zero-valued fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.IrrelevanceThreshold <= 0 {
		p.IrrelevanceThreshold = d.IrrelevanceThreshold
	}
	if p.HistoryWindow <= 0 {
		p.HistoryWindow = d.HistoryWindow
	}
	if p.RetrievalTopK <= 0 {
		p.RetrievalTopK = d.RetrievalTopK
	}
	if p.SentimentWindow <= 0 {
		p.SentimentWindow = d.SentimentWindow
	}
	if p.SentimentHistoryCap <= 0 {
		p.SentimentHistoryCap = d.SentimentHistoryCap
	}
	setDefault(&p.WelcomeText, d.WelcomeText)
	setDefault(&p.EmpathyText, d.EmpathyText)
	setDefault(&p.RedirectText, d.RedirectText)
	setDefault(&p.ApologyText, d.ApologyText)
	setDefault(&p.ThankYouText, d.ThankYouText)
	setDefault(&p.CollectStart, d.CollectStart)
	setDefault(&p.CollectNext, d.CollectNext)
	setDefault(&p.InvalidEmail, d.InvalidEmail)
	setDefault(&p.InvalidPhone, d.InvalidPhone)
	setDefault(&p.InvalidDefault, d.InvalidDefault)
	return p
}

func setDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func (p Policy) validationMessage(field, label string) string {
	switch field {
	case "email":
		return p.InvalidEmail
	case "phone":
		return p.InvalidPhone
	default:
		return fmt.Sprintf(p.InvalidDefault, label)
	}
}

// Config is the typed chatbot configuration. Optional fields are resolved
// once by Resolve and never re-derived per message.
type Config struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Template        string `json:"template"`
	Personality     string `json:"personality"`
	SystemPrompt    string `json:"system_prompt"`
	WelcomeMessage  string `json:"welcome_message"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
}

// Resolve fills defaults from the template catalog and policy.
func (c Config) Resolve(catalog *Catalog, p Policy) Config {
	if tpl := catalog.Lookup(c.Template); tpl != nil {
		if c.Personality == "" {
			c.Personality = tpl.DefaultPersonality
		}
		if c.SystemPrompt == "" {
			c.SystemPrompt = tpl.SystemPrompt
		}
	}
	if strings.TrimSpace(c.WelcomeMessage) == "" {
		c.WelcomeMessage = p.withDefaults().WelcomeText
	}
	return c
}

// ClassifierContext is the domain description handed to the classifier.
func (c Config) ClassifierContext() string {
	if strings.TrimSpace(c.Description) != "" {
		return c.Description
	}
	return c.Name
}

func (c Config) HasKnowledgeBase() bool { return c.KnowledgeBaseID != "" }
