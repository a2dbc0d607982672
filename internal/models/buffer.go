package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VoiceBuffer tracks one spoken message from upload to the finished turn.
type VoiceBuffer struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID     string             `bson:"chat_id" json:"chat_id"`
	ChunkIndex int64              `bson:"chunk_index" json:"chunk_index"`
	Language   string             `bson:"language,omitempty" json:"language,omitempty"`

	AudioURL    *string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	AudioBase64 *string `bson:"audio_base64,omitempty" json:"-"`

	Transcript    string  `bson:"transcript,omitempty" json:"transcript,omitempty"`
	STTStatus     string  `bson:"stt_status" json:"stt_status"` // pending|processing|done|failed
	STTConfidence float64 `bson:"stt_confidence,omitempty" json:"stt_confidence,omitempty"`

	TurnStatus       string `bson:"turn_status" json:"turn_status"` // pending|processing|done|failed
	TurnOutcome      string `bson:"turn_outcome,omitempty" json:"turn_outcome,omitempty"`
	ProcessingTimeMS int64  `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)
