package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/utils"
)

// Store persists chat traffic and leads in Postgres.
type Store struct {
	convs ConversationRepository
	leads LeadRepository
}

func NewStore(convs ConversationRepository, leads LeadRepository) *Store {
	return &Store{convs: convs, leads: leads}
}

func (s *Store) InsertMessage(ctx context.Context, chatbotID, sessionID, content string, role chatbot.Role) error {
	_, err := s.convs.AddSessionMessage(ctx, chatbotID, sessionID, content, string(role))
	return err
}

func (s *Store) FindConversationID(ctx context.Context, chatbotID, sessionID string) (string, error) {
	conv, err := s.convs.FindBySession(ctx, chatbotID, sessionID)
	if errors.Is(err, utils.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *Store) InsertLead(ctx context.Context, lead *chatbot.Lead) error {
	row, err := models.NewUserInteraction(lead)
	if err != nil {
		return err
	}
	row.ID = uuid.NewString()
	row.CreatedAt = time.Now().UTC()
	return s.leads.Insert(ctx, row)
}

var _ chatbot.Store = (*Store)(nil)
