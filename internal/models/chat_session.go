package models

import (
	"time"

	"github.com/yoockh/botdesk/internal/chatbot"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatSession is the server-side snapshot of one open widget chat.
type ChatSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ChatID    string             `bson:"chat_id" json:"chat_id"`
	ChatbotID string             `bson:"chatbot_id" json:"chatbot_id"`
	Session   chatbot.Session    `bson:"session" json:"session"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // TTL index
}
