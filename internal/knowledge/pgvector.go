package knowledge

import (
	"context"

	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/repositories/postgres"
)

// PGVectorIndex searches the document_chunks table.
type PGVectorIndex struct {
	repo postgres.ChunkRepository
}

func NewPGVectorIndex(repo postgres.ChunkRepository) *PGVectorIndex {
	return &PGVectorIndex{repo: repo}
}

func (p *PGVectorIndex) Search(ctx context.Context, chatbotID string, vector []float32, k int) ([]chatbot.Chunk, error) {
	rows, err := p.repo.SearchSimilar(ctx, chatbotID, vector, k)
	if err != nil {
		return nil, err
	}
	out := make([]chatbot.Chunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, chatbot.Chunk{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Text:       r.ChunkText,
			Score:      float32(r.Similarity),
		})
	}
	return out, nil
}
