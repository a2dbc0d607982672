package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/events"
	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/providers/stt"
	"github.com/yoockh/botdesk/internal/services"
	"github.com/yoockh/botdesk/internal/utils"
)

type fakeVoice struct {
	stt   []string
	turns []string
}

func (f *fakeVoice) SendVoice(context.Context, string, []byte, stt.Options) (*services.VoiceTurnView, error) {
	return nil, nil
}
func (f *fakeVoice) Enqueue(context.Context, services.VoiceChunk) (*models.VoiceBuffer, error) {
	return nil, nil
}
func (f *fakeVoice) UploadURL(context.Context, string, int64, stt.Format) (*services.VoiceUpload, error) {
	return nil, nil
}
func (f *fakeVoice) MarkSTT(_ context.Context, _ string, _ int64, transcript string, _ float64, status string) error {
	f.stt = append(f.stt, status+":"+transcript)
	return nil
}
func (f *fakeVoice) MarkTurn(_ context.Context, _ string, _ int64, outcome, status string, _ int64) error {
	f.turns = append(f.turns, status+":"+outcome)
	return nil
}
func (f *fakeVoice) ListByChat(context.Context, string, int64) ([]models.VoiceBuffer, error) {
	return nil, nil
}

type fakeChats struct {
	sent []string
	err  error
}

func (f *fakeChats) Open(context.Context, string) (*services.ChatView, error) { return nil, nil }
func (f *fakeChats) Get(context.Context, string) (*services.ChatView, error)  { return nil, nil }
func (f *fakeChats) Send(_ context.Context, chatID, text string) (*services.TurnView, error) {
	f.sent = append(f.sent, text)
	if f.err != nil {
		return nil, f.err
	}
	return &services.TurnView{ChatID: chatID, Outcome: chatbot.OutcomeReply}, nil
}
func (f *fakeChats) Reset(context.Context, string) (*services.ChatView, error) { return nil, nil }
func (f *fakeChats) Clear(context.Context, string) (*services.ChatView, error) { return nil, nil }
func (f *fakeChats) ChatbotOf(context.Context, string) (string, error)         { return "", nil }

type fakeSTT struct {
	text string
	err  error
	got  []byte
	opts stt.Options
}

func (f *fakeSTT) Transcribe(_ context.Context, audio []byte, opts stt.Options) (string, float64, error) {
	f.got, f.opts = audio, opts
	return f.text, 0.9, f.err
}
func (f *fakeSTT) Close() error { return nil }

type fakeBucket struct {
	objects map[string][]byte
	reads   []string
}

func (b *fakeBucket) Download(_ context.Context, object string, limit int64) ([]byte, error) {
	b.reads = append(b.reads, object)
	data, ok := b.objects[object]
	if !ok {
		return nil, utils.ErrNotFound
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("object %s exceeds %d bytes", object, limit)
	}
	return data, nil
}

type fakePub struct{ events []events.ChatEvent }

func (p *fakePub) Publish(_ context.Context, _ string, v any) error {
	p.events = append(p.events, v.(events.ChatEvent))
	return nil
}

func (p *fakePub) statuses() []string {
	var out []string
	for _, e := range p.events {
		if e.Type == events.TypeStatus {
			out = append(out, e.Status)
		}
	}
	return out
}

func newPool(rec *fakeSTT, chats *fakeChats) (*VoiceWorkerPool, *fakeVoice, *fakePub) {
	voice := &fakeVoice{}
	pub := &fakePub{}
	log := logrus.New()
	log.SetOutput(io.Discard)
	p := &VoiceWorkerPool{Voice: voice, Chats: chats, STT: rec, Events: pub, Logger: log}
	p.setDefaults()
	return p, voice, pub
}

func TestDecodeAudio(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aGVsbG8=", "hello", false},
		{"data:audio/webm;base64,aGVsbG8=", "hello", false},
		{"not base64!", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := decodeAudio(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("decodeAudio(%q) err = %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("decodeAudio(%q) = %q", tt.in, got)
		}
	}
}

func TestVoiceJobFrom(t *testing.T) {
	job := voiceJobFrom(redis.XMessage{ID: "1-0", Values: map[string]any{
		"chat_id":      "chat-1",
		"chunk_index":  "3",
		"language":     "id-ID",
		"format":       "webm_opus",
		"audio_base64": "AAA=",
		"audio_object": "voice/chat-1/3.webm",
	}})
	if job.ChatID != "chat-1" || job.ChunkIndex != 3 || job.Format != stt.FormatWebmOpus || job.AudioBase64 != "AAA=" || job.AudioObject != "voice/chat-1/3.webm" {
		t.Errorf("job = %+v", job)
	}
}

func TestHandle_RunsTurn(t *testing.T) {
	rec := &fakeSTT{text: "where is my order"}
	chats := &fakeChats{}
	p, voice, pub := newPool(rec, chats)

	p.handle(context.Background(), voiceJob{ChatID: "chat-1", ChunkIndex: 1, Language: "en", Format: stt.FormatWebmOpus, AudioBase64: "aGVsbG8="})

	if string(rec.got) != "hello" || rec.opts.Format != stt.FormatWebmOpus {
		t.Errorf("stt got %q %+v", rec.got, rec.opts)
	}
	if len(chats.sent) != 1 || chats.sent[0] != "where is my order" {
		t.Errorf("sent = %v", chats.sent)
	}
	if got := voice.stt; len(got) != 2 || got[1] != "done:where is my order" {
		t.Errorf("stt marks = %v", got)
	}
	if got := voice.turns; len(got) != 2 || got[1] != "done:reply" {
		t.Errorf("turn marks = %v", got)
	}
	if st := pub.statuses(); st[len(st)-1] != models.StatusDone {
		t.Errorf("statuses = %v", st)
	}
}

func TestHandle_STTFailureSkipsTurn(t *testing.T) {
	chats := &fakeChats{}
	p, voice, pub := newPool(&fakeSTT{err: errors.New("quota")}, chats)

	p.handle(context.Background(), voiceJob{ChatID: "chat-1", ChunkIndex: 1, AudioBase64: "aGVsbG8="})

	if len(chats.sent) != 0 {
		t.Errorf("turn ran after stt failure: %v", chats.sent)
	}
	if voice.stt[len(voice.stt)-1] != "failed:" {
		t.Errorf("stt marks = %v", voice.stt)
	}
	if st := pub.statuses(); st[len(st)-1] != models.StatusFailed {
		t.Errorf("statuses = %v", st)
	}
}

func TestHandle_SilenceSkipsTurn(t *testing.T) {
	chats := &fakeChats{}
	p, _, _ := newPool(&fakeSTT{text: "  "}, chats)

	p.handle(context.Background(), voiceJob{ChatID: "chat-1", ChunkIndex: 1, AudioBase64: "aGVsbG8="})
	if len(chats.sent) != 0 {
		t.Errorf("sent = %v", chats.sent)
	}
}

func TestHandle_AudioObject(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{
		"voice/chat-1/1.wav": []byte("RIFF"),
		"voice/chat-2/1.wav": []byte("OTHER"),
	}}
	rec := &fakeSTT{text: "hi"}
	chats := &fakeChats{}
	p, voice, _ := newPool(rec, chats)
	p.Audio = bucket

	p.handle(context.Background(), voiceJob{ChatID: "chat-1", ChunkIndex: 1, AudioObject: "voice/chat-1/1.wav"})
	if string(rec.got) != "RIFF" || len(chats.sent) != 1 {
		t.Errorf("got %q sent %v", rec.got, chats.sent)
	}

	p.handle(context.Background(), voiceJob{ChatID: "chat-1", ChunkIndex: 2, AudioObject: "voice/chat-1/missing.wav"})
	if voice.stt[len(voice.stt)-1] != "failed:" || len(chats.sent) != 1 {
		t.Errorf("missing audio: stt=%v sent=%v", voice.stt, chats.sent)
	}
}

func TestHandle_AudioObjectOutsideChatPrefix(t *testing.T) {
	tests := []string{
		"voice/chat-2/1.wav",
		"exports/bot-1/all.json",
		"http://169.254.169.254/computeMetadata/v1/",
	}
	for _, obj := range tests {
		bucket := &fakeBucket{objects: map[string][]byte{obj: []byte("SECRET")}}
		rec := &fakeSTT{text: "hi"}
		chats := &fakeChats{}
		p, voice, _ := newPool(rec, chats)
		p.Audio = bucket

		p.handle(context.Background(), voiceJob{ChatID: "chat-1", ChunkIndex: 1, AudioObject: obj})
		if len(bucket.reads) != 0 || rec.got != nil || len(chats.sent) != 0 {
			t.Errorf("%s: reads=%v stt=%q sent=%v", obj, bucket.reads, rec.got, chats.sent)
		}
		if voice.stt[len(voice.stt)-1] != "failed:" {
			t.Errorf("%s: stt marks = %v", obj, voice.stt)
		}
	}
}

func TestHandle_AudioObjectWithoutBucket(t *testing.T) {
	chats := &fakeChats{}
	p, voice, _ := newPool(&fakeSTT{text: "hi"}, chats)

	p.handle(context.Background(), voiceJob{ChatID: "chat-1", ChunkIndex: 1, AudioObject: "voice/chat-1/1.wav"})
	if len(chats.sent) != 0 || voice.stt[len(voice.stt)-1] != "failed:" {
		t.Errorf("stt=%v sent=%v", voice.stt, chats.sent)
	}
}

func TestHandle_TurnFailureMarksBuffer(t *testing.T) {
	chats := &fakeChats{err: errors.New("conflict")}
	p, voice, _ := newPool(&fakeSTT{text: "hello"}, chats)

	p.handle(context.Background(), voiceJob{ChatID: "chat-1", ChunkIndex: 1, AudioBase64: "aGVsbG8="})
	if voice.turns[len(voice.turns)-1] != "failed:" {
		t.Errorf("turn marks = %v", voice.turns)
	}
}
