package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryTurnLock is a process-local TurnLock for single-instance runs and tests.
type MemoryTurnLock struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemoryTurnLock() *MemoryTurnLock {
	return &MemoryTurnLock{held: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryTurnLock) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, ErrLocked
	}
	exp := now.Add(ttl)
	l.held[key] = exp
	return &memoryLease{lock: l, key: key, exp: exp}, nil
}

// memoryLease identifies its claim by the expiry it last wrote.
type memoryLease struct {
	lock *MemoryTurnLock
	key  string
	exp  time.Time
}

func (m *memoryLease) owned(now time.Time) bool {
	exp, ok := m.lock.held[m.key]
	return ok && exp.Equal(m.exp) && now.Before(exp)
}

func (m *memoryLease) Refresh(_ context.Context, ttl time.Duration) error {
	l := m.lock
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !m.owned(now) {
		return ErrLockLost
	}
	m.exp = now.Add(ttl)
	l.held[m.key] = m.exp
	return nil
}

func (m *memoryLease) Release(context.Context) error {
	l := m.lock
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[m.key]; ok && exp.Equal(m.exp) {
		delete(l.held, m.key)
	}
	return nil
}
