package chatbot

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Role is the author role used by the persistence layer and the generator.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of the UI-visible transcript. Once appended it is
// only ever changed to attach a conversation id learned after the fact.
type ChatMessage struct {
	ID             string    `json:"id" bson:"id"`
	Text           string    `json:"text" bson:"text"`
	Sender         Sender    `json:"sender" bson:"sender"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
	Sources        []string  `json:"sources,omitempty" bson:"sources,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
}

type Sentiment string

const (
	SentimentHappy   Sentiment = "happy"
	SentimentNeutral Sentiment = "neutral"
	SentimentUnhappy Sentiment = "unhappy"
)

// StorageValue maps the analyzer vocabulary to the one stored on leads.
func (s Sentiment) StorageValue() string {
	switch s {
	case SentimentHappy:
		return "positive"
	case SentimentUnhappy:
		return "negative"
	default:
		return "neutral"
	}
}

func (s Sentiment) valid() bool {
	return s == SentimentHappy || s == SentimentNeutral || s == SentimentUnhappy
}

type SentimentResult struct {
	Sentiment      Sentiment `json:"sentiment" bson:"sentiment"`
	ShouldEscalate bool      `json:"should_escalate" bson:"should_escalate"`
}

type ClassificationResult struct {
	NeedsKnowledgeBase bool    `json:"needs_knowledge_base"`
	IsRelevant         bool    `json:"is_relevant"`
	Confidence         float64 `json:"confidence"`
	Reasoning          string  `json:"reasoning"`
}

// Session is the transient per-chat state. It mirrors writes to the
// persistence layer but is owned by exactly one chat handle.
type Session struct {
	SessionID             string            `json:"session_id,omitempty" bson:"session_id,omitempty"`
	ConversationID        string            `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
	Messages              []ChatMessage     `json:"messages" bson:"messages"`
	SentimentHistory      []SentimentResult `json:"sentiment_history" bson:"sentiment_history"`
	IsEscalated           bool              `json:"is_escalated" bson:"is_escalated"`
	CollectedFields       map[string]string `json:"collected_fields" bson:"collected_fields"`
	ActiveCollectionField string            `json:"active_collection_field,omitempty" bson:"active_collection_field,omitempty"`
}

// NewSession returns an empty session with its maps allocated.
func NewSession() *Session {
	return &Session{CollectedFields: map[string]string{}}
}

// Clone returns a deep copy so callers can hand the state out safely.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]ChatMessage, len(s.Messages))
	for i, m := range s.Messages {
		if m.Sources != nil {
			m.Sources = append([]string(nil), m.Sources...)
		}
		out.Messages[i] = m
	}
	out.SentimentHistory = append([]SentimentResult(nil), s.SentimentHistory...)
	out.CollectedFields = make(map[string]string, len(s.CollectedFields))
	for k, v := range s.CollectedFields {
		out.CollectedFields[k] = v
	}
	return &out
}

// LatestSentiment returns the most recent analyzer verdict, neutral when none.
func (s *Session) LatestSentiment() Sentiment {
	if len(s.SentimentHistory) == 0 {
		return SentimentNeutral
	}
	return s.SentimentHistory[len(s.SentimentHistory)-1].Sentiment
}

// Transcript returns the message texts in chronological order.
func (s *Session) Transcript() []string {
	out := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, m.Text)
	}
	return out
}
