package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/utils"
	"gorm.io/gorm"
)

type ChatbotRepository interface {
	GetByID(ctx context.Context, id string) (*models.Chatbot, error)
	SetWidgetKeyHash(ctx context.Context, id, hash string) error
}

type chatbotRepo struct {
	db *gorm.DB
}

func NewChatbotRepo(db *gorm.DB) ChatbotRepository {
	return &chatbotRepo{db: db}
}

func (r *chatbotRepo) GetByID(ctx context.Context, id string) (*models.Chatbot, error) {
	var row models.Chatbot
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *chatbotRepo) SetWidgetKeyHash(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Chatbot{}).
		Where("id = ?", id).
		Updates(map[string]any{"widget_key_hash": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
