package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/utils"
	"gorm.io/gorm"
)

type LeadRepository interface {
	Insert(ctx context.Context, row *models.UserInteraction) error
	ListByChatbot(ctx context.Context, chatbotID string, limit int) ([]models.UserInteraction, error)
	GetByID(ctx context.Context, id string) (*models.UserInteraction, error)
	Delete(ctx context.Context, id string) error
}

type leadRepo struct {
	db *gorm.DB
}

func NewLeadRepo(db *gorm.DB) LeadRepository {
	return &leadRepo{db: db}
}

func (r *leadRepo) Insert(ctx context.Context, row *models.UserInteraction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *leadRepo) ListByChatbot(ctx context.Context, chatbotID string, limit int) ([]models.UserInteraction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.UserInteraction
	err := r.db.WithContext(ctx).
		Where("chatbot_id = ?", chatbotID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *leadRepo) GetByID(ctx context.Context, id string) (*models.UserInteraction, error) {
	var row models.UserInteraction
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *leadRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.UserInteraction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
