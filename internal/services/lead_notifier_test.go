package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/events"
)

func TestLeadNotification(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]string
		ok      bool
		message string
	}{
		{"name and email", map[string]string{"name": "Jane", "email": "jane@example.com"}, true,
			"Lead information captured from Jane (jane@example.com)"},
		{"email only", map[string]string{"email": "x@y.io"}, true,
			"Lead information captured from a user (x@y.io)"},
		{"no email", map[string]string{"phone": "+1 555 0100"}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, ok := leadNotification(&chatbot.Lead{Fields: tt.fields})
			if ok != tt.ok {
				t.Fatalf("ok = %v", ok)
			}
			if !ok {
				return
			}
			if note.Title != "New Lead Captured" || note.Type != "chatbot" || note.Message != tt.message {
				t.Errorf("note = %+v", note)
			}
		})
	}
}

func TestLeadNotifier_InsertLead(t *testing.T) {
	inner := &recordingStore{}
	pub := &fakePublisher{}
	up := newFakeUploader()
	n := NewLeadNotifier(inner, pub, up, quietLogger())
	n.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	lead := &chatbot.Lead{
		ChatbotID:      "bot-1",
		ConversationID: "conv-1",
		Fields:         map[string]string{"email": "jane@example.com"},
		Sentiment:      "neutral",
		Transcript:     []string{"Hi there!", "I need a refund"},
	}
	if err := n.InsertLead(context.Background(), lead); err != nil {
		t.Fatal(err)
	}

	if len(inner.leads) != 1 {
		t.Fatalf("inner store leads = %d", len(inner.leads))
	}
	if len(pub.events) != 1 || pub.events[0].channel != events.NotificationChannel("bot-1") {
		t.Fatalf("events = %+v", pub.events)
	}

	body, ok := up.objects["leads/bot-1/conv-1/20240102T030405.000000000Z.json"]
	if !ok {
		t.Fatalf("archive missing, objects = %v", up.objects)
	}
	var archived map[string]any
	if err := json.Unmarshal(body, &archived); err != nil {
		t.Fatal(err)
	}
	if archived["chatbot_id"] != "bot-1" || archived["captured_at"] != "2024-01-02T03:04:05Z" {
		t.Errorf("archive = %v", archived)
	}
}

func TestLeadNotifier_SideEffectsDoNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	up := newFakeUploader()
	up.err = errors.New("gcs down")
	n := NewLeadNotifier(&recordingStore{}, pub, up, quietLogger())

	lead := &chatbot.Lead{ChatbotID: "bot-1", Fields: map[string]string{"email": "a@b.co"}}
	if err := n.InsertLead(context.Background(), lead); err != nil {
		t.Fatalf("InsertLead() error = %v", err)
	}
}

func TestLeadNotifier_StoreFailureSkipsSideEffects(t *testing.T) {
	boom := errors.New("insert failed")
	pub := &fakePublisher{}
	up := newFakeUploader()
	n := NewLeadNotifier(&recordingStore{leadErr: boom}, pub, up, quietLogger())

	err := n.InsertLead(context.Background(), &chatbot.Lead{ChatbotID: "b", Fields: map[string]string{"email": "a@b.co"}})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(pub.events) != 0 || len(up.objects) != 0 {
		t.Error("side effects ran for a failed write")
	}
}

func TestLeadNotifier_UnassignedLeadsKeepSeparateArchives(t *testing.T) {
	up := newFakeUploader()
	n := NewLeadNotifier(&recordingStore{}, &fakePublisher{}, up, quietLogger())
	n.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	for _, sess := range []string{"sess-a", "sess-b"} {
		lead := &chatbot.Lead{ChatbotID: "bot-1", SessionID: sess, Fields: map[string]string{"email": "a@b.co"}}
		if err := n.InsertLead(context.Background(), lead); err != nil {
			t.Fatal(err)
		}
	}
	if len(up.objects) != 2 {
		t.Fatalf("archives = %v, want one per lead", up.objects)
	}
	if _, ok := up.objects["leads/bot-1/unassigned/20240102T030405.000000000Z-sess-a.json"]; !ok {
		t.Errorf("objects = %v", up.objects)
	}
}
