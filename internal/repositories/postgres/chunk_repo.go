package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/yoockh/botdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChunkRepository interface {
	// SearchSimilar returns the k chunks of a chatbot closest to embedding
	// by cosine distance, best first.
	SearchSimilar(ctx context.Context, chatbotID string, embedding []float32, k int) ([]models.ScoredChunk, error)
}

type chunkRepo struct {
	db *gorm.DB
}

func NewChunkRepo(db *gorm.DB) ChunkRepository {
	return &chunkRepo{db: db}
}

func (r *chunkRepo) SearchSimilar(ctx context.Context, chatbotID string, embedding []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}
	vec := pgvector.NewVector(embedding)

	var rows []models.ScoredChunk
	err := r.db.WithContext(ctx).
		Model(&models.DocumentChunk{}).
		Select("id, chatbot_id, document_id, chunk_index, chunk_text, created_at, 1 - (embedding <=> ?) AS similarity", vec).
		Where("chatbot_id = ?", chatbotID).
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}}).
		Limit(k).
		Scan(&rows).Error
	return rows, err
}
