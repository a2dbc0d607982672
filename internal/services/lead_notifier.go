package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/events"
	"github.com/yoockh/botdesk/internal/storage"
)

// LeadNotifier wraps a chatbot.Store. After a lead is stored it notifies the
// chatbot owner and archives the transcript; neither side effect can fail
// the write.
type LeadNotifier struct {
	chatbot.Store
	events   events.Publisher
	uploader storage.Uploader
	log      *logrus.Logger
	now      func() time.Time
}

func NewLeadNotifier(inner chatbot.Store, pub events.Publisher, uploader storage.Uploader, log *logrus.Logger) *LeadNotifier {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LeadNotifier{Store: inner, events: pub, uploader: uploader, log: log, now: time.Now}
}

func (n *LeadNotifier) InsertLead(ctx context.Context, lead *chatbot.Lead) error {
	if err := n.Store.InsertLead(ctx, lead); err != nil {
		return err
	}

	log := n.log.WithFields(logrus.Fields{
		"chatbot_id":      lead.ChatbotID,
		"conversation_id": lead.ConversationID,
	})

	if note, ok := leadNotification(lead); ok {
		if err := n.events.Publish(ctx, events.NotificationChannel(lead.ChatbotID), note); err != nil {
			log.WithError(err).Warn("lead notification failed")
		}
	}

	if n.uploader != nil {
		if err := n.archive(ctx, lead); err != nil {
			log.WithError(err).Warn("lead archive failed")
		}
	}
	return nil
}

func (n *LeadNotifier) archive(ctx context.Context, lead *chatbot.Lead) error {
	at := n.now().UTC()
	body, err := json.Marshal(struct {
		*chatbot.Lead
		CapturedAt time.Time `json:"captured_at"`
	}{lead, at})
	if err != nil {
		return err
	}
	_, err = n.uploader.Upload(ctx,
		storage.LeadArchiveObject(lead.ChatbotID, lead.ConversationID, lead.SessionID, at),
		"application/json", bytes.NewReader(body))
	return err
}

// leadNotification builds the owner notification. Leads without an email
// are not announced.
func leadNotification(lead *chatbot.Lead) (events.Notification, bool) {
	email := lead.Fields["email"]
	if email == "" {
		return events.Notification{}, false
	}
	name := lead.Fields["name"]
	if name == "" {
		name = "a user"
	}
	return events.Notification{
		Title:   "New Lead Captured",
		Message: fmt.Sprintf("Lead information captured from %s (%s)", name, email),
		Type:    "chatbot",
	}, true
}

var _ chatbot.Store = (*LeadNotifier)(nil)
