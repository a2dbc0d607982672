package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/cache"
	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/events"
	"github.com/yoockh/botdesk/internal/models"
	mongorepo "github.com/yoockh/botdesk/internal/repositories/mongo"
	"github.com/yoockh/botdesk/internal/utils"
)

// ChatView is the client-facing state of one widget chat.
type ChatView struct {
	ChatID         string                `json:"chat_id"`
	ChatbotID      string                `json:"chatbot_id"`
	SessionID      string                `json:"session_id,omitempty"`
	ConversationID string                `json:"conversation_id,omitempty"`
	Messages       []chatbot.ChatMessage `json:"messages"`
	IsEscalated    bool                  `json:"is_escalated"`
	Sentiment      chatbot.Sentiment     `json:"sentiment"`
	CollectingFor  string                `json:"collecting_field,omitempty"`
}

// TurnView holds what one message added to a chat.
type TurnView struct {
	ChatID      string                `json:"chat_id"`
	Outcome     chatbot.Outcome       `json:"outcome"`
	Messages    []chatbot.ChatMessage `json:"messages"`
	IsEscalated bool                  `json:"is_escalated"`
	Sentiment   chatbot.Sentiment     `json:"sentiment"`
}

type ChatService interface {
	Open(ctx context.Context, chatbotID string) (*ChatView, error)
	Get(ctx context.Context, chatID string) (*ChatView, error)
	Send(ctx context.Context, chatID, text string) (*TurnView, error)
	// Reset starts the chat over with the welcome message.
	Reset(ctx context.Context, chatID string) (*ChatView, error)
	// Clear empties the transcript without a welcome message.
	Clear(ctx context.Context, chatID string) (*ChatView, error)
	ChatbotOf(ctx context.Context, chatID string) (string, error)
}

type ChatServiceDeps struct {
	Sessions     mongorepo.ChatSessionRepository
	Chatbots     ChatbotService
	Orchestrator *chatbot.Orchestrator
	Lock         cache.TurnLock
	Events       events.Publisher
	Logger       *logrus.Logger

	SessionTTL time.Duration
	LockTTL    time.Duration
	Now        func() time.Time
}

type chatService struct {
	sessions mongorepo.ChatSessionRepository
	chatbots ChatbotService
	orch     *chatbot.Orchestrator
	lock     cache.TurnLock
	events   events.Publisher
	log      *logrus.Logger

	sessionTTL time.Duration
	lockTTL    time.Duration
	now        func() time.Time
}

func NewChatService(d ChatServiceDeps) ChatService {
	if d.SessionTTL <= 0 {
		d.SessionTTL = 24 * time.Hour
	}
	if d.LockTTL <= 0 {
		d.LockTTL = 60 * time.Second
	}
	if d.Lock == nil {
		d.Lock = cache.NewMemoryTurnLock()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &chatService{
		sessions:   d.Sessions,
		chatbots:   d.Chatbots,
		orch:       d.Orchestrator,
		lock:       d.Lock,
		events:     d.Events,
		log:        d.Logger,
		sessionTTL: d.SessionTTL,
		lockTTL:    d.LockTTL,
		now:        d.Now,
	}
}

func (s *chatService) Open(ctx context.Context, chatbotID string) (*ChatView, error) {
	const op = "ChatService.Open"

	cfg, err := s.chatbots.Config(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	conv := s.orch.Open(cfg, nil)

	row := &models.ChatSession{
		ChatID:    uuid.NewString(),
		ChatbotID: chatbotID,
	}
	if err := s.save(ctx, row, conv.Snapshot()); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store chat", err)
	}
	return chatView(row), nil
}

func (s *chatService) Get(ctx context.Context, chatID string) (*ChatView, error) {
	const op = "ChatService.Get"

	row, err := s.load(ctx, op, chatID)
	if err != nil {
		return nil, err
	}
	return chatView(row), nil
}

func (s *chatService) ChatbotOf(ctx context.Context, chatID string) (string, error) {
	const op = "ChatService.ChatbotOf"

	row, err := s.load(ctx, op, chatID)
	if err != nil {
		return "", err
	}
	return row.ChatbotID, nil
}

func (s *chatService) Send(ctx context.Context, chatID, text string) (*TurnView, error) {
	const op = "ChatService.Send"

	var out *TurnView
	_, err := s.withChat(ctx, op, chatID, func(ctx context.Context, conv *chatbot.Conversation) error {
		turn, err := conv.SendMessage(ctx, text)
		if err != nil {
			return err
		}
		snap := conv.Snapshot()
		out = &TurnView{
			ChatID:      chatID,
			Outcome:     turn.Outcome,
			Messages:    turn.Messages,
			IsEscalated: snap.IsEscalated,
			Sentiment:   snap.LatestSentiment(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.Publish(ctx, events.ChatChannel(chatID), events.ChatEvent{
		Type:   events.TypeTurn,
		ChatID: chatID,
		Data:   out,
	}); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("publish turn event failed")
	}
	return out, nil
}

func (s *chatService) Reset(ctx context.Context, chatID string) (*ChatView, error) {
	return s.restart(ctx, "ChatService.Reset", chatID, (*chatbot.Conversation).Initialize)
}

func (s *chatService) Clear(ctx context.Context, chatID string) (*ChatView, error) {
	return s.restart(ctx, "ChatService.Clear", chatID, (*chatbot.Conversation).Clear)
}

func (s *chatService) restart(ctx context.Context, op, chatID string, fn func(*chatbot.Conversation) error) (*ChatView, error) {
	row, err := s.withChat(ctx, op, chatID, func(_ context.Context, conv *chatbot.Conversation) error {
		return fn(conv)
	})
	if err != nil {
		return nil, err
	}
	return chatView(row), nil
}

// withChat runs fn on the stored snapshot while holding the chat's turn lock,
// then stores the resulting snapshot. The lease is refreshed for as long as fn
// runs; if it is lost anyway, fn's context is cancelled and nothing is stored.
func (s *chatService) withChat(ctx context.Context, op, chatID string, fn func(context.Context, *chatbot.Conversation) error) (*models.ChatSession, error) {
	if chatID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chat_id is required", nil)
	}

	lease, err := s.lock.Acquire(ctx, cache.TurnLockKey(chatID), s.lockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLocked) {
			return nil, utils.E(utils.CodeConflict, op, "a message is already being processed", chatbot.ErrTurnInProgress)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to acquire chat lock", err)
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := lease.Release(rctx); err != nil {
			s.log.WithError(err).WithField("chat_id", chatID).Warn("release chat lock failed")
		}
	}()

	turnCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := s.keepAlive(turnCtx, cancel, lease, chatID)
	defer stop()

	row, err := s.load(turnCtx, op, chatID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.chatbots.Config(turnCtx, row.ChatbotID)
	if err != nil {
		return nil, err
	}

	conv := s.orch.Open(cfg, &row.Session)
	if err := fn(turnCtx, conv); err != nil {
		if errors.Is(context.Cause(turnCtx), cache.ErrLockLost) {
			return nil, lockLost(op)
		}
		return nil, mapTurnError(op, err)
	}

	stop()
	if errors.Is(context.Cause(turnCtx), cache.ErrLockLost) {
		return nil, lockLost(op)
	}
	if err := lease.Refresh(ctx, s.lockTTL); err != nil {
		if errors.Is(err, cache.ErrLockLost) {
			return nil, lockLost(op)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to confirm chat lock", err)
	}
	if err := s.save(ctx, row, conv.Snapshot()); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store chat", err)
	}
	return row, nil
}

// keepAlive refreshes lease every third of the lock TTL until stop is called.
// Losing the lease cancels ctx with cache.ErrLockLost.
func (s *chatService) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, lease cache.Lease, chatID string) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		every := s.lockTTL / 3
		if every <= 0 {
			every = time.Millisecond
		}
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
			}
			err := lease.Refresh(ctx, s.lockTTL)
			switch {
			case err == nil:
			case errors.Is(err, cache.ErrLockLost):
				s.log.WithField("chat_id", chatID).Warn("chat lock lost during turn")
				cancel(err)
				return
			default:
				// the next tick retries; an expired lease surfaces as ErrLockLost
				s.log.WithError(err).WithField("chat_id", chatID).Warn("refresh chat lock failed")
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

func lockLost(op string) error {
	return utils.E(utils.CodeConflict, op, "chat lock expired before the turn finished; the turn was discarded", cache.ErrLockLost)
}

func (s *chatService) load(ctx context.Context, op, chatID string) (*models.ChatSession, error) {
	if chatID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chat_id is required", nil)
	}
	row, err := s.sessions.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "chat not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load chat", err)
	}
	return row, nil
}

func (s *chatService) save(ctx context.Context, row *models.ChatSession, snap *chatbot.Session) error {
	row.Session = *snap
	row.ExpiresAt = s.now().UTC().Add(s.sessionTTL)
	return s.sessions.Save(ctx, row)
}

func mapTurnError(op string, err error) error {
	if _, ok := utils.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, chatbot.ErrEmptyMessage):
		return utils.E(utils.CodeInvalidArgument, op, "message text is required", err)
	case errors.Is(err, chatbot.ErrTurnInProgress):
		return utils.E(utils.CodeConflict, op, "a message is already being processed", err)
	default:
		return utils.E(utils.CodeInternal, op, "failed to process message", err)
	}
}

func chatView(row *models.ChatSession) *ChatView {
	s := row.Session
	msgs := s.Messages
	if msgs == nil {
		msgs = []chatbot.ChatMessage{}
	}
	return &ChatView{
		ChatID:         row.ChatID,
		ChatbotID:      row.ChatbotID,
		SessionID:      s.SessionID,
		ConversationID: s.ConversationID,
		Messages:       msgs,
		IsEscalated:    s.IsEscalated,
		Sentiment:      s.LatestSentiment(),
		CollectingFor:  s.ActiveCollectionField,
	}
}
