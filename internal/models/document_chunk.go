package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type DocumentChunk struct {
	ID         string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChatbotID  string          `gorm:"column:chatbot_id;type:uuid;index" json:"chatbot_id"`
	DocumentID string          `gorm:"column:document_id;type:uuid;index" json:"document_id"`
	ChunkIndex int             `gorm:"column:chunk_index;type:integer" json:"chunk_index"`
	ChunkText  string          `gorm:"column:chunk_text;type:text" json:"chunk_text"`
	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
	CreatedAt  time.Time       `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (DocumentChunk) TableName() string { return "document_chunks" }

// ScoredChunk is a DocumentChunk row with its cosine similarity to a query.
type ScoredChunk struct {
	DocumentChunk
	Similarity float64 `gorm:"column:similarity" json:"similarity"`
}
