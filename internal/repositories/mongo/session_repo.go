package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatSessionRepository stores the snapshots of open widget chats.
type ChatSessionRepository interface {
	Save(ctx context.Context, s *models.ChatSession) error
	GetByChatID(ctx context.Context, chatID string) (*models.ChatSession, error)
	Delete(ctx context.Context, chatID string) error
}

type chatSessionRepo struct {
	col *mongo.Collection
}

func NewChatSessionRepo(db *mongo.Database) ChatSessionRepository {
	return &chatSessionRepo{col: db.Collection("chat_sessions")}
}

func (r *chatSessionRepo) Save(ctx context.Context, s *models.ChatSession) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := r.col.UpdateOne(ctx,
		bson.M{"chat_id": s.ChatID},
		bson.M{
			"$set": bson.M{
				"chatbot_id": s.ChatbotID,
				"session":    s.Session,
				"updated_at": s.UpdatedAt,
				"expires_at": s.ExpiresAt,
			},
			"$setOnInsert": bson.M{"created_at": s.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *chatSessionRepo) GetByChatID(ctx context.Context, chatID string) (*models.ChatSession, error) {
	var s models.ChatSession
	err := r.col.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *chatSessionRepo) Delete(ctx context.Context, chatID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
