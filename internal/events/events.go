package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, v any) error
}

func ChatChannel(chatID string) string { return "chat:" + chatID + ":events" }

func NotificationChannel(chatbotID string) string { return "chatbot:" + chatbotID + ":notifications" }

// Event types pushed on a chat channel.
const (
	TypeTurn   = "turn"
	TypeStatus = "status"
	TypeSTT    = "stt_result"
	TypeError  = "error"
)

// ChatEvent is the envelope every message on a chat channel uses.
type ChatEvent struct {
	Type       string  `json:"type"`
	ChatID     string  `json:"chat_id"`
	ChunkIndex int64   `json:"chunk_index,omitempty"`
	Status     string  `json:"status,omitempty"`
	Message    string  `json:"message,omitempty"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Data       any     `json:"data,omitempty"`
}

// Notification mirrors the dashboard notification row.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, channel, b).Err()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// Queue appends work items to a stream read by a consumer group.
type Queue interface {
	Add(ctx context.Context, stream string, values map[string]any) (id string, err error)
}

const VoiceStream = "voice:stream"

type RedisQueue struct {
	rdb *redis.Client
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Add(ctx context.Context, stream string, values map[string]any) (string, error) {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
}
