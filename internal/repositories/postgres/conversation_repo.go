package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepository interface {
	// AddSessionMessage appends a message to the conversation of a chatbot
	// session, creating the conversation on first use. It returns the
	// conversation id.
	AddSessionMessage(ctx context.Context, chatbotID, sessionID, content, role string) (string, error)
	FindBySession(ctx context.Context, chatbotID, sessionID string) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) AddSessionMessage(ctx context.Context, chatbotID, sessionID, content, role string) (string, error) {
	var convID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		conv := &models.Conversation{
			ID:        uuid.NewString(),
			ChatbotID: chatbotID,
			SessionID: sessionID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chatbot_id"}, {Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).Create(conv).Error; err != nil {
			return err
		}

		var existing models.Conversation
		if err := tx.Where("chatbot_id = ? AND session_id = ?", chatbotID, sessionID).
			Take(&existing).Error; err != nil {
			return err
		}
		convID = existing.ID

		return tx.Create(&models.Message{
			ID:             uuid.NewString(),
			ConversationID: existing.ID,
			Role:           role,
			Content:        content,
			CreatedAt:      now,
		}).Error
	})
	return convID, err
}

func (r *conversationRepo) FindBySession(ctx context.Context, chatbotID, sessionID string) (*models.Conversation, error) {
	var row models.Conversation
	err := r.db.WithContext(ctx).
		Where("chatbot_id = ? AND session_id = ?", chatbotID, sessionID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *conversationRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
