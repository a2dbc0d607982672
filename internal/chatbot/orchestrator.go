package chatbot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/yoockh/botdesk/internal/chatbot")

// Deps are the collaborators shared by every conversation.
type Deps struct {
	Store      Store
	Classifier Classifier
	Sentiment  SentimentAnalyzer
	Retriever  Retriever
	Generator  Generator
	Catalog    *Catalog
	Policy     Policy
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

// Orchestrator sequences the turn pipeline. It holds no per-chat state and
// is safe to share between conversations.
type Orchestrator struct {
	store      Store
	classifier Classifier
	sentiment  SentimentAnalyzer
	retriever  Retriever
	generator  Generator
	catalog    *Catalog
	policy     Policy
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Catalog == nil {
		d.Catalog = DefaultCatalog()
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Orchestrator{
		store:      d.Store,
		classifier: d.Classifier,
		sentiment:  d.Sentiment,
		retriever:  d.Retriever,
		generator:  d.Generator,
		catalog:    d.Catalog,
		policy:     d.Policy.withDefaults(),
		log:        d.Logger,
		now:        d.Now,
	}
}

func (o *Orchestrator) Policy() Policy    { return o.policy }
func (o *Orchestrator) Catalog() *Catalog { return o.catalog }

// Conversation is the handle of one open chat. All session mutation goes
// through it; a second SendMessage while one is running is rejected.
type Conversation struct {
	o   *Orchestrator
	cfg Config
	tpl *TemplatePrompt

	busy atomic.Bool
	mu   sync.Mutex
	s    *Session
}

// Open binds a chatbot configuration to a session. A nil session starts a
// fresh chat seeded with the welcome message.
func (o *Orchestrator) Open(cfg Config, s *Session) *Conversation {
	cfg = cfg.Resolve(o.catalog, o.policy)
	c := &Conversation{o: o, cfg: cfg, tpl: o.catalog.Lookup(cfg.Template)}
	if s == nil {
		c.s = NewSession()
		c.s.Messages = []ChatMessage{c.welcome()}
	} else {
		c.s = s
		if c.s.CollectedFields == nil {
			c.s.CollectedFields = map[string]string{}
		}
	}
	return c
}

func (c *Conversation) Config() Config { return c.cfg }

// IsTyping reports whether a turn is in flight.
func (c *Conversation) IsTyping() bool { return c.busy.Load() }

// Snapshot returns a copy of the session state.
func (c *Conversation) Snapshot() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Clone()
}

// Initialize resets the chat to a fresh session holding only the welcome
// message.
func (c *Conversation) Initialize() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrTurnInProgress
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.s = NewSession()
	c.s.Messages = []ChatMessage{c.welcome()}
	return nil
}

// Clear resets the chat to an empty transcript.
func (c *Conversation) Clear() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrTurnInProgress
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.s = NewSession()
	return nil
}

func (c *Conversation) welcome() ChatMessage {
	return ChatMessage{
		ID:        "welcome",
		Text:      c.cfg.WelcomeMessage,
		Sender:    SenderBot,
		Timestamp: c.o.now(),
	}
}

// Turn is the outcome of one SendMessage call.
type Turn struct {
	// Messages holds everything appended to the transcript during the
	// turn, the user's message first.
	Messages []ChatMessage
	Outcome  Outcome
}

type Outcome string

const (
	OutcomeReply           Outcome = "reply"
	OutcomeIrrelevant      Outcome = "irrelevant"
	OutcomeCollectPrompt   Outcome = "collect_prompt"
	OutcomeCollectInvalid  Outcome = "collect_invalid"
	OutcomeCollectComplete Outcome = "collect_complete"
	OutcomeFailed          Outcome = "failed"
)

// SendMessage runs one full turn for text.
func (c *Conversation) SendMessage(ctx context.Context, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrTurnInProgress
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "chatbot.turn", trace.WithAttributes(
		attribute.String("chatbot.id", c.cfg.ID),
	))
	defer span.End()

	t := &turn{c: c, s: c.s, start: len(c.s.Messages)}
	t.log = c.o.log.WithFields(logrus.Fields{
		"chatbot_id": c.cfg.ID,
		"session_id": c.s.SessionID,
	})

	outcome := t.run(ctx, text)
	span.SetAttributes(attribute.String("chatbot.outcome", string(outcome)))
	if outcome == OutcomeFailed {
		span.SetStatus(codes.Error, "turn failed")
	}

	appended := make([]ChatMessage, len(c.s.Messages)-t.start)
	copy(appended, c.s.Messages[t.start:])
	return &Turn{Messages: appended, Outcome: outcome}, nil
}

type turn struct {
	c     *Conversation
	s     *Session
	log   logrus.FieldLogger
	start int
}

func (t *turn) run(ctx context.Context, text string) Outcome {
	if t.s.ActiveCollectionField != "" {
		return t.answerCollection(ctx, text)
	}

	outcome, err := t.converse(ctx, text)
	if err != nil {
		t.log.WithError(err).Error("turn failed")
		t.appendBot("bot-error", t.c.o.policy.ApologyText, nil)
		return OutcomeFailed
	}
	return outcome
}

// answerCollection treats text as the value of the field being collected.
func (t *turn) answerCollection(ctx context.Context, text string) Outcome {
	o := t.c.o
	field := t.s.ActiveCollectionField
	t.appendUser(text)

	if !Validate(field, text) {
		t.appendBot("bot-validation", o.policy.validationMessage(field, t.c.tpl.Label(field)), nil)
		return OutcomeCollectInvalid
	}

	t.s.CollectedFields[field] = text

	if next, ok := NextRequiredMissing(t.c.tpl, t.s.CollectedFields); ok {
		t.appendBot("bot-collect", fmt.Sprintf(o.policy.CollectNext, t.c.tpl.Label(next)), nil)
		t.s.ActiveCollectionField = next
		return OutcomeCollectPrompt
	}

	t.appendBot("bot-thanks", o.policy.ThankYouText, nil)
	t.s.ActiveCollectionField = ""
	t.storeLead(ctx)
	return OutcomeCollectComplete
}

func (t *turn) storeLead(ctx context.Context) {
	o := t.c.o
	if o.store == nil || len(t.s.CollectedFields) == 0 {
		return
	}
	fields := make(map[string]string, len(t.s.CollectedFields))
	for k, v := range t.s.CollectedFields {
		fields[k] = v
	}
	lead := &Lead{
		ChatbotID:      t.c.cfg.ID,
		SessionID:      t.s.SessionID,
		ConversationID: t.s.ConversationID,
		Fields:         fields,
		Sentiment:      t.s.LatestSentiment().StorageValue(),
		Transcript:     t.s.Transcript(),
	}
	if err := o.store.InsertLead(ctx, lead); err != nil {
		t.log.WithError(err).Error("failed to store lead")
		return
	}
	t.log.WithField("fields", len(fields)).Info("lead stored")
}

// converse runs an ordinary turn outside the collection flow. Any returned
// error becomes the single apology message of the turn.
func (t *turn) converse(ctx context.Context, text string) (Outcome, error) {
	o := t.c.o
	cfg := t.c.cfg
	if o.store == nil {
		return "", fmt.Errorf("store user message: %w", errNotConfigured)
	}

	prior := t.s.Messages
	userIdx := t.appendUser(text)

	if t.s.SessionID == "" {
		t.s.SessionID = newSessionID(o.now())
		t.log = t.log.WithField("session_id", t.s.SessionID)
		t.log.Debug("session created")
	}

	if err := o.store.InsertMessage(ctx, cfg.ID, t.s.SessionID, text, RoleUser); err != nil {
		return "", fmt.Errorf("store user message: %w", err)
	}

	if t.s.ConversationID == "" {
		id, err := o.store.FindConversationID(ctx, cfg.ID, t.s.SessionID)
		switch {
		case err != nil:
			t.log.WithError(err).Warn("conversation id lookup failed")
		case id != "":
			t.s.ConversationID = id
			t.s.Messages[userIdx].ConversationID = id
			t.log = t.log.WithField("conversation_id", id)
		}
	}

	if field, ok := MatchTrigger(text, t.c.tpl, t.s.CollectedFields); ok {
		t.appendBot("bot-request", fmt.Sprintf(o.policy.CollectStart, t.c.tpl.Label(field)), nil)
		t.s.ActiveCollectionField = field
		return OutcomeCollectPrompt, nil
	}

	if !t.s.IsEscalated && o.sentiment != nil {
		t.analyzeSentiment(ctx, prior, text)
	}

	class := FailOpenClassification
	if o.classifier != nil {
		cctx, span := tracer.Start(ctx, "chatbot.classify")
		class = o.classifier.Classify(cctx, text, cfg.ClassifierContext())
		span.End()
	}
	t.log.WithFields(logrus.Fields{
		"needs_kb":   class.NeedsKnowledgeBase,
		"relevant":   class.IsRelevant,
		"confidence": class.Confidence,
	}).Debug("question classified")

	if !class.IsRelevant && class.Confidence > o.policy.IrrelevanceThreshold {
		t.appendBot("bot-irrelevant", o.policy.RedirectText, nil)
		t.persistAssistant(ctx, o.policy.RedirectText)
		return OutcomeIrrelevant, nil
	}

	var (
		kbContext string
		kbSources []string
	)
	if class.NeedsKnowledgeBase && cfg.HasKnowledgeBase() && o.retriever != nil {
		rctx, span := tracer.Start(ctx, "chatbot.retrieve")
		chunks, err := o.retriever.Retrieve(rctx, text, o.policy.RetrievalTopK, cfg.ID)
		span.End()
		if err != nil {
			return "", fmt.Errorf("retrieve knowledge: %w", err)
		}
		kbContext, kbSources = buildContext(chunks)
		t.log.WithField("chunks", len(chunks)).Debug("knowledge retrieved")
	}

	if o.generator == nil {
		return "", fmt.Errorf("generate reply: %w", errNotConfigured)
	}
	gctx, span := tracer.Start(ctx, "chatbot.generate")
	reply, err := o.generator.Generate(gctx, GenerateRequest{
		History:      buildHistory(prior, text, o.policy.HistoryWindow),
		Context:      kbContext,
		Persona:      cfg.Personality,
		SystemPrompt: cfg.SystemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		span.End()
		return "", fmt.Errorf("generate reply: %w", err)
	}
	span.End()
	if reply == nil || strings.TrimSpace(reply.Message) == "" {
		return "", fmt.Errorf("generate reply: empty response")
	}

	sources := reply.Sources
	if len(sources) == 0 {
		sources = kbSources
	}
	t.appendBot("bot", reply.Message, sources)
	t.persistAssistant(ctx, reply.Message)
	return OutcomeReply, nil
}

func (t *turn) analyzeSentiment(ctx context.Context, prior []ChatMessage, current string) {
	o := t.c.o
	recent := recentUserTexts(prior, o.policy.SentimentWindow)
	recent = append(recent, current)

	sctx, span := tracer.Start(ctx, "chatbot.sentiment")
	res := o.sentiment.Analyze(sctx, recent)
	span.End()

	t.s.SentimentHistory = append(t.s.SentimentHistory, res)
	if n := len(t.s.SentimentHistory); n > o.policy.SentimentHistoryCap {
		t.s.SentimentHistory = append([]SentimentResult(nil), t.s.SentimentHistory[n-o.policy.SentimentHistoryCap:]...)
	}

	if res.ShouldEscalate && !t.s.IsEscalated {
		t.s.IsEscalated = true
		t.log.WithField("sentiment", res.Sentiment).Info("conversation escalated")
		t.appendBot("empathy", o.policy.EmpathyText, nil)
	}
}

// persistAssistant stores a reply the user can already see. A failure is
// logged only: the reply has been delivered and must not be followed by an
// apology.
func (t *turn) persistAssistant(ctx context.Context, text string) {
	if err := t.c.o.store.InsertMessage(ctx, t.c.cfg.ID, t.s.SessionID, text, RoleAssistant); err != nil {
		t.log.WithError(err).Error("failed to store assistant message")
	}
}

func (t *turn) appendUser(text string) int {
	t.s.Messages = append(t.s.Messages, ChatMessage{
		ID:             "user-" + uuid.NewString(),
		Text:           text,
		Sender:         SenderUser,
		Timestamp:      t.c.o.now(),
		ConversationID: t.s.ConversationID,
	})
	return len(t.s.Messages) - 1
}

func (t *turn) appendBot(kind, text string, sources []string) {
	t.s.Messages = append(t.s.Messages, ChatMessage{
		ID:             kind + "-" + uuid.NewString(),
		Text:           text,
		Sender:         SenderBot,
		Timestamp:      t.c.o.now(),
		Sources:        sources,
		ConversationID: t.s.ConversationID,
	})
}

// newSessionID combines a millisecond clock with 128 random bits.
func newSessionID(now time.Time) string {
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func recentUserTexts(msgs []ChatMessage, n int) []string {
	var out []string
	for i := len(msgs) - 1; i >= 0 && len(out) < n; i-- {
		if msgs[i].Sender == SenderUser {
			out = append(out, msgs[i].Text)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func buildHistory(prior []ChatMessage, current string, window int) []HistoryMessage {
	if len(prior) > window {
		prior = prior[len(prior)-window:]
	}
	out := make([]HistoryMessage, 0, len(prior)+1)
	for _, m := range prior {
		role := RoleAssistant
		if m.Sender == SenderUser {
			role = RoleUser
		}
		out = append(out, HistoryMessage{Role: role, Content: m.Text})
	}
	return append(out, HistoryMessage{Role: RoleUser, Content: current})
}

func buildContext(chunks []Chunk) (string, []string) {
	if len(chunks) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(chunks))
	sources := make([]string, 0, len(chunks))
	for i, ch := range chunks {
		parts = append(parts, fmt.Sprintf("[Source %d]: %s", i+1, ch.Text))
		sources = append(sources, fmt.Sprintf("Knowledge Base - Chunk %d", i+1))
	}
	return strings.Join(parts, "\n\n"), sources
}
