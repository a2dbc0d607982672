package mongo

import (
	"context"
	"time"

	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type BufferRepository interface {
	InsertChunk(ctx context.Context, b *models.VoiceBuffer) error
	UpdateSTT(ctx context.Context, chatID string, chunkIndex int64, transcript string, confidence float64, status string) error
	UpdateTurn(ctx context.Context, chatID string, chunkIndex int64, outcome, status string, processingMS int64) error
	ListByChat(ctx context.Context, chatID string, limit int64) ([]models.VoiceBuffer, error)
}

type bufferRepo struct {
	col *mongo.Collection
}

func NewBufferRepo(db *mongo.Database) BufferRepository {
	return &bufferRepo{col: db.Collection("voice_buffer")}
}

func (r *bufferRepo) InsertChunk(ctx context.Context, b *models.VoiceBuffer) error {
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, b)
	return err
}

func (r *bufferRepo) UpdateSTT(ctx context.Context, chatID string, chunkIndex int64, transcript string, confidence float64, status string) error {
	return r.setChunk(ctx, chatID, chunkIndex, bson.M{
		"transcript":     transcript,
		"stt_confidence": confidence,
		"stt_status":     status,
	})
}

func (r *bufferRepo) UpdateTurn(ctx context.Context, chatID string, chunkIndex int64, outcome, status string, processingMS int64) error {
	return r.setChunk(ctx, chatID, chunkIndex, bson.M{
		"turn_outcome":       outcome,
		"turn_status":        status,
		"processing_time_ms": processingMS,
	})
}

func (r *bufferRepo) setChunk(ctx context.Context, chatID string, chunkIndex int64, set bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"chat_id": chatID, "chunk_index": chunkIndex}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *bufferRepo) ListByChat(ctx context.Context, chatID string, limit int64) ([]models.VoiceBuffer, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"chat_id": chatID},
		options.Find().
			SetSort(bson.D{{Key: "chunk_index", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.VoiceBuffer
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
