package services

import (
	"context"
	"errors"

	"github.com/yoockh/botdesk/internal/models"
	pgrepo "github.com/yoockh/botdesk/internal/repositories/postgres"
	"github.com/yoockh/botdesk/internal/utils"
)

type LeadService interface {
	ListByChatbot(ctx context.Context, userID, chatbotID string, limit int) ([]models.UserInteraction, error)
	Delete(ctx context.Context, userID, leadID string) error
}

type leadService struct {
	leads    pgrepo.LeadRepository
	chatbots ChatbotService
}

func NewLeadService(leads pgrepo.LeadRepository, chatbots ChatbotService) LeadService {
	return &leadService{leads: leads, chatbots: chatbots}
}

func (s *leadService) ListByChatbot(ctx context.Context, userID, chatbotID string, limit int) ([]models.UserInteraction, error) {
	const op = "LeadService.ListByChatbot"

	if _, err := s.chatbots.GetOwned(ctx, userID, chatbotID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out, err := s.leads.ListByChatbot(ctx, chatbotID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list leads", err)
	}
	return out, nil
}

func (s *leadService) Delete(ctx context.Context, userID, leadID string) error {
	const op = "LeadService.Delete"

	if leadID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "lead id is required", nil)
	}
	row, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "lead not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load lead", err)
	}
	if _, err := s.chatbots.GetOwned(ctx, userID, row.ChatbotID); err != nil {
		return err
	}
	if err := s.leads.Delete(ctx, leadID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "lead not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete lead", err)
	}
	return nil
}
