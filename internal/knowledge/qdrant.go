package knowledge

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"github.com/yoockh/botdesk/internal/chatbot"
)

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// pointQuerier is the slice of *qdrant.Client used by QdrantIndex.
type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// QdrantIndex searches a Qdrant collection whose points carry a chatbot_id
// keyword payload alongside the chunk text.
type QdrantIndex struct {
	client     pointQuerier
	collection string
}

func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &QdrantIndex{client: c, collection: cfg.Collection}, nil
}

func (q *QdrantIndex) Close() error { return q.client.Close() }

func (q *QdrantIndex) Search(ctx context.Context, chatbotID string, vector []float32, k int) ([]chatbot.Chunk, error) {
	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         chatbotFilter(chatbotID),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	out := make([]chatbot.Chunk, 0, len(points))
	for _, p := range points {
		out = append(out, pointToChunk(p))
	}
	return out, nil
}

func chatbotFilter(chatbotID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   "chatbot_id",
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: chatbotID}},
			},
		},
	}}}
}

func pointToChunk(p *qdrant.ScoredPoint) chatbot.Chunk {
	c := chatbot.Chunk{Score: p.GetScore()}
	if id := p.GetId(); id != nil {
		if u := id.GetUuid(); u != "" {
			c.ID = u
		} else {
			c.ID = strconv.FormatUint(id.GetNum(), 10)
		}
	}
	payload := p.GetPayload()
	c.DocumentID = payload["document_id"].GetStringValue()
	c.Text = payload["chunk_text"].GetStringValue()
	if c.Text == "" {
		c.Text = payload["content"].GetStringValue()
	}
	return c
}

// parseQdrantURL accepts "host:port" or a full http(s) URL. Port defaults
// to the gRPC port 6334.
func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	if raw == "" {
		return "", 0, false, fmt.Errorf("qdrant url is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("parse qdrant url: %w", err)
	}
	port = 6334
	if u.Port() != "" {
		if port, err = strconv.Atoi(u.Port()); err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}
