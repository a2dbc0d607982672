package services

import (
	"context"
	"errors"

	"github.com/yoockh/botdesk/internal/models"
	pgrepo "github.com/yoockh/botdesk/internal/repositories/postgres"
	"github.com/yoockh/botdesk/internal/utils"
)

// ConversationService reads back the messages persisted for a chat session.
type ConversationService interface {
	ListBySession(ctx context.Context, userID, chatbotID, sessionID string, limit int) ([]models.Message, error)
}

type conversationService struct {
	convos   pgrepo.ConversationRepository
	chatbots ChatbotService
}

func NewConversationService(convos pgrepo.ConversationRepository, chatbots ChatbotService) ConversationService {
	return &conversationService{convos: convos, chatbots: chatbots}
}

func (s *conversationService) ListBySession(ctx context.Context, userID, chatbotID, sessionID string, limit int) ([]models.Message, error) {
	const op = "ConversationService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if _, err := s.chatbots.GetOwned(ctx, userID, chatbotID); err != nil {
		return nil, err
	}

	conv, err := s.convos.FindBySession(ctx, chatbotID, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}

	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	out, err := s.convos.ListMessages(ctx, conv.ID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}
	return out, nil
}
