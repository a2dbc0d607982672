package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/providers/stt"
	"github.com/yoockh/botdesk/internal/utils"
)

type fakeChatbotRepo struct {
	rows    map[string]*models.Chatbot
	gets    int
	setHash string
	getErr  error
}

func (f *fakeChatbotRepo) GetByID(_ context.Context, id string) (*models.Chatbot, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeChatbotRepo) SetWidgetKeyHash(_ context.Context, id, hash string) error {
	if _, ok := f.rows[id]; !ok {
		return utils.ErrNotFound
	}
	f.setHash = hash
	f.rows[id].WidgetKeyHash = hash
	return nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, jsonUnmarshal(b, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := jsonMarshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type memSessions struct {
	mu   sync.Mutex
	rows map[string]models.ChatSession
}

func newMemSessions() *memSessions { return &memSessions{rows: map[string]models.ChatSession{}} }

func (m *memSessions) Save(_ context.Context, s *models.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Session = *s.Session.Clone()
	m.rows[s.ChatID] = cp
	return nil
}

func (m *memSessions) GetByChatID(_ context.Context, chatID string) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[chatID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	row.Session = *row.Session.Clone()
	return &row, nil
}

func (m *memSessions) Delete(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, chatID)
	return nil
}

type recordingStore struct {
	mu       sync.Mutex
	messages []string
	leads    []*chatbot.Lead
	leadErr  error
}

func (s *recordingStore) InsertMessage(_ context.Context, _, _, content string, role chatbot.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, string(role)+":"+content)
	return nil
}

func (s *recordingStore) FindConversationID(context.Context, string, string) (string, error) {
	return "conv-1", nil
}

func (s *recordingStore) InsertLead(_ context.Context, lead *chatbot.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leadErr != nil {
		return s.leadErr
	}
	s.leads = append(s.leads, lead)
	return nil
}

type relevantClassifier struct{}

func (relevantClassifier) Classify(context.Context, string, string) chatbot.ClassificationResult {
	return chatbot.ClassificationResult{IsRelevant: true, Confidence: 0.9}
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, req chatbot.GenerateRequest) (*chatbot.Reply, error) {
	last := req.History[len(req.History)-1]
	return &chatbot.Reply{Message: "echo: " + last.Content}, nil
}

type publishedEvent struct {
	channel string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{channel, v})
	return p.err
}

type fakeUploader struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (u *fakeUploader) Upload(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	u.objects[name] = b
	u.types[name] = contentType
	return "gs://bucket/" + name, nil
}

type fakeSigner struct{}

func (fakeSigner) SignedGetURL(_ context.Context, name string, _ time.Duration) (string, error) {
	return "https://signed.example/" + name, nil
}

type fakeSTT struct {
	text string
	conf float64
	err  error
	got  stt.Options
}

func (f *fakeSTT) Transcribe(_ context.Context, _ []byte, opts stt.Options) (string, float64, error) {
	f.got = opts
	return f.text, f.conf, f.err
}
func (f *fakeSTT) Close() error { return nil }

type fakeBuffers struct {
	inserted  []*models.VoiceBuffer
	stt       []string
	turns     []string
	updateErr error
}

func (f *fakeBuffers) InsertChunk(_ context.Context, b *models.VoiceBuffer) error {
	f.inserted = append(f.inserted, b)
	return nil
}

func (f *fakeBuffers) UpdateSTT(_ context.Context, _ string, _ int64, transcript string, _ float64, status string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.stt = append(f.stt, status+":"+transcript)
	return nil
}

func (f *fakeBuffers) UpdateTurn(_ context.Context, _ string, _ int64, outcome, status string, _ int64) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.turns = append(f.turns, status+":"+outcome)
	return nil
}

func (f *fakeBuffers) ListByChat(context.Context, string, int64) ([]models.VoiceBuffer, error) {
	out := make([]models.VoiceBuffer, 0, len(f.inserted))
	for _, b := range f.inserted {
		out = append(out, *b)
	}
	return out, nil
}

type fakePutSigner struct {
	object      string
	contentType string
	ttl         time.Duration
}

func (f *fakePutSigner) SignedPutURL(_ context.Context, object, contentType string, ttl time.Duration) (string, error) {
	f.object, f.contentType, f.ttl = object, contentType, ttl
	return "https://storage.googleapis.com/media/" + object + "?X-Goog-Signature=sig", nil
}

type fakeQueue struct {
	stream string
	values []map[string]any
	err    error
}

func (q *fakeQueue) Add(_ context.Context, stream string, values map[string]any) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.stream = stream
	q.values = append(q.values, values)
	return "1-0", nil
}
