package cache

import (
	"context"
	"errors"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

var (
	// ErrLocked is returned by TurnLock.Acquire when another holder owns the key.
	ErrLocked = errors.New("cache: lock held")
	// ErrLockLost is returned by Lease.Refresh once the lease expired and the
	// key is free or owned by someone else.
	ErrLockLost = errors.New("cache: lock lost")
)

// TurnLock serialises message processing per chat across instances.
type TurnLock interface {
	// Acquire returns ErrLocked when the key is taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is one holder's claim on a TurnLock key.
type Lease interface {
	// Refresh pushes the expiry ttl into the future.
	Refresh(ctx context.Context, ttl time.Duration) error
	// Release frees the key if this lease still owns it.
	Release(ctx context.Context) error
}

func ChatbotConfigKey(chatbotID string) string { return "chatbot:" + chatbotID + ":config" }

func TurnLockKey(chatID string) string { return "chat:" + chatID + ":turn" }
