package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/yoockh/botdesk/internal/chatbot"
	"gorm.io/datatypes"
)

// UserInteraction is a captured lead: the contact data a visitor gave the
// chatbot, plus the transcript at the time of capture.
type UserInteraction struct {
	ID             string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChatbotID      string  `gorm:"column:chatbot_id;type:uuid;index" json:"chatbot_id"`
	ConversationID *string `gorm:"column:conversation_id;type:uuid" json:"conversation_id,omitempty"`
	SessionID      string  `gorm:"column:session_id;type:text" json:"session_id,omitempty"`

	Email string `gorm:"column:email;type:text" json:"email,omitempty"`
	Name  string `gorm:"column:name;type:text" json:"name,omitempty"`
	Phone string `gorm:"column:phone;type:text" json:"phone,omitempty"`

	// CollectedData keeps every collected field, including template
	// specific ones without a dedicated column.
	CollectedData datatypes.JSON `gorm:"column:collected_data;type:jsonb" json:"collected_data"`

	Sentiment           string         `gorm:"column:sentiment;type:text" json:"sentiment"` // positive|neutral|negative
	Reaction            string         `gorm:"column:reaction;type:text" json:"reaction"`
	ConversationHistory pq.StringArray `gorm:"column:conversation_history;type:text[]" json:"conversation_history"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (UserInteraction) TableName() string { return "user_interactions" }

// NewUserInteraction maps a lead captured in chat onto its table row.
// ID and CreatedAt are left to the caller.
func NewUserInteraction(l *chatbot.Lead) (*UserInteraction, error) {
	data, err := json.Marshal(l.Fields)
	if err != nil {
		return nil, err
	}
	row := &UserInteraction{
		ChatbotID:           l.ChatbotID,
		SessionID:           l.SessionID,
		Email:               l.Fields["email"],
		Name:                l.Fields["name"],
		Phone:               l.Fields["phone"],
		CollectedData:       datatypes.JSON(data),
		Sentiment:           l.Sentiment,
		Reaction:            "neutral",
		ConversationHistory: pq.StringArray(l.Transcript),
	}
	if l.ConversationID != "" {
		id := l.ConversationID
		row.ConversationID = &id
	}
	return row, nil
}
