package chatbot

import "context"

// Store is the slice of the persistence layer the turn pipeline writes to.
type Store interface {
	// InsertMessage appends a message to the conversation identified by
	// chatbot and session, creating the conversation on first use.
	InsertMessage(ctx context.Context, chatbotID, sessionID, content string, role Role) error

	// FindConversationID resolves the durable conversation id for a session.
	// It returns "" and a nil error when no conversation exists yet.
	FindConversationID(ctx context.Context, chatbotID, sessionID string) (string, error)

	// InsertLead stores the data collected from the user.
	InsertLead(ctx context.Context, lead *Lead) error
}

// Lead is the record written once all required collection fields are known.
type Lead struct {
	ChatbotID      string            `json:"chatbot_id"`
	SessionID      string            `json:"session_id,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Fields         map[string]string `json:"fields"`
	Sentiment      string            `json:"sentiment"`
	Transcript     []string          `json:"conversation_history"`
}

// TextClassifier runs a classification prompt against a model and returns
// its raw output, which is expected to be a JSON object.
type TextClassifier interface {
	Classify(ctx context.Context, prompt, input string) (string, error)
}

// Chunk is one knowledge-base passage returned by similarity search.
type Chunk struct {
	ID         string
	DocumentID string
	Text       string
	Score      float32
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, chatbotID string) ([]Chunk, error)
}

type HistoryMessage struct {
	Role    Role
	Content string
}

type GenerateRequest struct {
	History      []HistoryMessage
	Context      string
	Persona      string
	SystemPrompt string
}

type Reply struct {
	Message string
	Sources []string
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Reply, error)
}

// Classifier decides whether a message needs the knowledge base and whether
// it is on-topic for the chatbot.
type Classifier interface {
	Classify(ctx context.Context, message, chatbotContext string) ClassificationResult
}

// SentimentAnalyzer scores a short window of user utterances.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, recentUserTexts []string) SentimentResult
}
