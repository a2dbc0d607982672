package events

import (
	"context"
	"encoding/json"
	"testing"
)

func TestChannels(t *testing.T) {
	if got := ChatChannel("c1"); got != "chat:c1:events" {
		t.Errorf("ChatChannel = %q", got)
	}
	if got := NotificationChannel("b1"); got != "chatbot:b1:notifications" {
		t.Errorf("NotificationChannel = %q", got)
	}
}

func TestChatEventOmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(ChatEvent{Type: TypeStatus, ChatID: "c1", Status: "done"})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"chunk_index", "text", "confidence", "data"} {
		if _, ok := m[k]; ok {
			t.Errorf("unexpected %q in %s", k, b)
		}
	}
	if m["type"] != TypeStatus || m["status"] != "done" {
		t.Errorf("event = %s", b)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), "x", ChatEvent{}); err != nil {
		t.Errorf("Nop.Publish = %v", err)
	}
}
