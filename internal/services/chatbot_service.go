package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/cache"
	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/models"
	pgrepo "github.com/yoockh/botdesk/internal/repositories/postgres"
	"github.com/yoockh/botdesk/internal/utils"
)

type ChatbotService interface {
	// Config returns the typed configuration the turn pipeline runs on,
	// served from cache when possible.
	Config(ctx context.Context, chatbotID string) (chatbot.Config, error)
	// GetOwned loads a chatbot and checks it belongs to userID.
	GetOwned(ctx context.Context, userID, chatbotID string) (*models.Chatbot, error)
	VerifyWidgetKey(ctx context.Context, chatbotID, key string) error
	// RotateWidgetKey issues a new embed key; the plain key is only
	// returned here.
	RotateWidgetKey(ctx context.Context, userID, chatbotID string) (string, error)
}

type chatbotService struct {
	chatbots pgrepo.ChatbotRepository
	cache    cache.Cache
	ttl      time.Duration
	log      *logrus.Logger
}

func NewChatbotService(chatbots pgrepo.ChatbotRepository, c cache.Cache, ttl time.Duration, log *logrus.Logger) ChatbotService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &chatbotService{chatbots: chatbots, cache: c, ttl: ttl, log: log}
}

func (s *chatbotService) Config(ctx context.Context, chatbotID string) (chatbot.Config, error) {
	const op = "ChatbotService.Config"

	if chatbotID == "" {
		return chatbot.Config{}, utils.E(utils.CodeInvalidArgument, op, "chatbot_id is required", nil)
	}

	key := cache.ChatbotConfigKey(chatbotID)
	if s.cache != nil {
		var cfg chatbot.Config
		hit, err := s.cache.GetJSON(ctx, key, &cfg)
		if err != nil {
			s.log.WithError(err).WithField("chatbot_id", chatbotID).Warn("chatbot config cache read failed")
		}
		if hit {
			return cfg, nil
		}
	}

	row, err := s.get(ctx, op, chatbotID)
	if err != nil {
		return chatbot.Config{}, err
	}
	cfg := row.ChatbotConfig()

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, cfg, s.ttl); err != nil {
			s.log.WithError(err).WithField("chatbot_id", chatbotID).Warn("chatbot config cache write failed")
		}
	}
	return cfg, nil
}

func (s *chatbotService) GetOwned(ctx context.Context, userID, chatbotID string) (*models.Chatbot, error) {
	const op = "ChatbotService.GetOwned"

	if userID == "" || chatbotID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and chatbot_id are required", nil)
	}
	row, err := s.get(ctx, op, chatbotID)
	if err != nil {
		return nil, err
	}
	if row.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "chatbot belongs to another user", nil)
	}
	return row, nil
}

func (s *chatbotService) VerifyWidgetKey(ctx context.Context, chatbotID, key string) error {
	const op = "ChatbotService.VerifyWidgetKey"

	if chatbotID == "" || key == "" {
		return utils.E(utils.CodeUnauthorized, op, "widget key is required", nil)
	}
	row, err := s.get(ctx, op, chatbotID)
	if err != nil {
		if utils.IsCode(err, utils.CodeNotFound) {
			return utils.E(utils.CodeUnauthorized, op, "invalid widget key", err)
		}
		return err
	}
	if row.WidgetKeyHash == "" {
		return utils.E(utils.CodeUnauthorized, op, "widget key not issued", nil)
	}
	if err := utils.CheckWidgetKey(row.WidgetKeyHash, key); err != nil {
		return utils.E(utils.CodeUnauthorized, op, "invalid widget key", err)
	}
	return nil
}

func (s *chatbotService) RotateWidgetKey(ctx context.Context, userID, chatbotID string) (string, error) {
	const op = "ChatbotService.RotateWidgetKey"

	if _, err := s.GetOwned(ctx, userID, chatbotID); err != nil {
		return "", err
	}
	plain, hash, err := utils.NewWidgetKey()
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to generate widget key", err)
	}
	if err := s.chatbots.SetWidgetKeyHash(ctx, chatbotID, hash); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to store widget key", err)
	}
	return plain, nil
}

func (s *chatbotService) get(ctx context.Context, op, chatbotID string) (*models.Chatbot, error) {
	row, err := s.chatbots.GetByID(ctx, chatbotID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "chatbot not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load chatbot", err)
	}
	return row, nil
}
