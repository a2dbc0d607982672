package models

import (
	"encoding/json"
	"time"

	"github.com/yoockh/botdesk/internal/chatbot"
	"gorm.io/datatypes"
)

type Chatbot struct {
	ID              string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          string  `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Name            string  `gorm:"column:name;type:text" json:"name"`
	Description     string  `gorm:"column:description;type:text" json:"description"`
	KnowledgeBaseID *string `gorm:"column:knowledge_base_id;type:uuid" json:"knowledge_base_id,omitempty"`

	// Configuration holds the widget settings chosen in the builder
	// (template, personality, systemPrompt, welcomeMessage).
	Configuration datatypes.JSON `gorm:"column:configuration;type:jsonb" json:"configuration"`

	WidgetKeyHash string `gorm:"column:widget_key_hash;type:text" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Chatbot) TableName() string { return "chatbots" }

type ChatbotConfiguration struct {
	Template       string `json:"template,omitempty"`
	Personality    string `json:"personality,omitempty"`
	SystemPrompt   string `json:"systemPrompt,omitempty"`
	WelcomeMessage string `json:"welcomeMessage,omitempty"`
}

// ChatbotConfig converts the stored row into the typed config the turn
// pipeline runs on. A malformed configuration column is treated as empty.
func (c *Chatbot) ChatbotConfig() chatbot.Config {
	var conf ChatbotConfiguration
	if len(c.Configuration) > 0 {
		_ = json.Unmarshal(c.Configuration, &conf)
	}
	cfg := chatbot.Config{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Template:       conf.Template,
		Personality:    conf.Personality,
		SystemPrompt:   conf.SystemPrompt,
		WelcomeMessage: conf.WelcomeMessage,
	}
	if c.KnowledgeBaseID != nil {
		cfg.KnowledgeBaseID = *c.KnowledgeBaseID
	}
	return cfg
}
