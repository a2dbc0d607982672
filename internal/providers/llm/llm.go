package llm

import "github.com/yoockh/botdesk/internal/chatbot"

// Provider is a model backend that can both answer chats and run the
// JSON classification prompts.
type Provider interface {
	chatbot.Generator
	chatbot.TextClassifier
	Close() error
}
