package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func runForward(ctx context.Context, msgs chan *redis.Message, readDone chan struct{}, write func([]byte) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		forwardEvents(ctx, msgs, readDone, write)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("forwardEvents still running after %s", what)
	}
}

func TestForwardEvents_StopsWhenClientGoesAway(t *testing.T) {
	// No event ever arrives on the chat channel; the loop must not stay
	// parked on the subscription after the reader exits.
	msgs := make(chan *redis.Message)
	readDone := make(chan struct{})
	done := runForward(context.Background(), msgs, readDone, func([]byte) error { return nil })

	close(readDone)
	waitDone(t, done, "the reader exited")
}

func TestForwardEvents_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := runForward(ctx, make(chan *redis.Message), make(chan struct{}), func([]byte) error { return nil })

	cancel()
	waitDone(t, done, "cancel")
}

func TestForwardEvents_WritesPayloads(t *testing.T) {
	msgs := make(chan *redis.Message, 2)
	msgs <- &redis.Message{Payload: `{"type":"turn"}`}
	msgs <- &redis.Message{Payload: `{"type":"status"}`}
	close(msgs)

	var got []string
	done := runForward(context.Background(), msgs, make(chan struct{}), func(b []byte) error {
		got = append(got, string(b))
		return nil
	})
	waitDone(t, done, "the subscription closed")

	if len(got) != 2 || got[0] != `{"type":"turn"}` || got[1] != `{"type":"status"}` {
		t.Errorf("written = %v", got)
	}
}

func TestForwardEvents_StopsOnWriteError(t *testing.T) {
	msgs := make(chan *redis.Message, 2)
	msgs <- &redis.Message{Payload: "a"}
	msgs <- &redis.Message{Payload: "b"}

	writes := 0
	done := runForward(context.Background(), msgs, make(chan struct{}), func([]byte) error {
		writes++
		return errors.New("broken pipe")
	})
	waitDone(t, done, "a failed write")

	if writes != 1 {
		t.Errorf("writes = %d, want 1", writes)
	}
}
