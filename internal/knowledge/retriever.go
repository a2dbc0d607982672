package knowledge

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/providers/embedding"
)

const defaultTopK = 5

// Index is a nearest-neighbour lookup over a chatbot's document chunks.
type Index interface {
	Search(ctx context.Context, chatbotID string, vector []float32, k int) ([]chatbot.Chunk, error)
}

type Retriever struct {
	embedder embedding.Provider
	index    Index
	log      *logrus.Logger
}

func NewRetriever(embedder embedding.Provider, index Index, log *logrus.Logger) *Retriever {
	return &Retriever{embedder: embedder, index: index, log: log}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, k int, chatbotID string) ([]chatbot.Chunk, error) {
	if strings.TrimSpace(query) == "" || chatbotID == "" {
		return nil, nil
	}
	if k <= 0 {
		k = defaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New("knowledge: empty query embedding")
	}

	chunks, err := r.index.Search(ctx, chatbotID, vec, k)
	if err != nil {
		return nil, err
	}

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		out = append(out, c)
	}
	if r.log != nil {
		r.log.WithFields(logrus.Fields{
			"chatbot_id": chatbotID,
			"requested":  k,
			"returned":   len(out),
		}).Debug("knowledge retrieval")
	}
	return out, nil
}

var _ chatbot.Retriever = (*Retriever)(nil)
