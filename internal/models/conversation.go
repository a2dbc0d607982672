package models

import "time"

// Conversation groups the persisted messages of one widget session.
type Conversation struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChatbotID string    `gorm:"column:chatbot_id;type:uuid;uniqueIndex:uniq_chatbot_session" json:"chatbot_id"`
	SessionID string    `gorm:"column:session_id;type:text;uniqueIndex:uniq_chatbot_session" json:"session_id"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	Role           string    `gorm:"column:role;type:text" json:"role"` // "user" | "assistant"
	Content        string    `gorm:"column:content;type:text" json:"content"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }
