package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/yoockh/botdesk/internal/events"
	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/providers/stt"
	mongorepo "github.com/yoockh/botdesk/internal/repositories/mongo"
	"github.com/yoockh/botdesk/internal/storage"
	"github.com/yoockh/botdesk/internal/utils"
)

// VoiceChunk is one recorded user message, carried either inline or by URL.
type VoiceChunk struct {
	ChatID      string
	ChunkIndex  int64
	Language    string
	Format      stt.Format
	AudioURL    *string
	AudioBase64 *string
}

type VoiceTurnView struct {
	Transcript string    `json:"transcript"`
	Confidence float64   `json:"confidence"`
	Turn       *TurnView `json:"turn,omitempty"`
}

// VoiceUpload lets a widget client PUT a chunk straight to object storage and
// then reference it by AudioURL in an audio_chunk frame.
type VoiceUpload struct {
	AudioURL    string    `json:"audio_url"`
	UploadURL   string    `json:"upload_url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type VoiceService interface {
	// SendVoice transcribes audio and runs the transcript as a chat turn.
	SendVoice(ctx context.Context, chatID string, audio []byte, opts stt.Options) (*VoiceTurnView, error)
	// UploadURL issues a signed upload for one chunk of the chat.
	UploadURL(ctx context.Context, chatID string, chunkIndex int64, format stt.Format) (*VoiceUpload, error)
	// Enqueue buffers a chunk and hands it to the voice workers. AudioURL
	// must name an object issued by UploadURL for the same chat.
	Enqueue(ctx context.Context, chunk VoiceChunk) (*models.VoiceBuffer, error)
	MarkSTT(ctx context.Context, chatID string, chunkIndex int64, transcript string, confidence float64, status string) error
	MarkTurn(ctx context.Context, chatID string, chunkIndex int64, outcome, status string, processingMS int64) error
	ListByChat(ctx context.Context, chatID string, limit int64) ([]models.VoiceBuffer, error)
}

type VoiceServiceDeps struct {
	Buffers mongorepo.BufferRepository
	Chats   ChatService
	STT     stt.Provider
	Queue   events.Queue

	// Signer and Bucket enable uploads by URL; without them only inline
	// audio is accepted.
	Signer storage.UploadSigner
	Bucket string

	TTL       time.Duration
	UploadTTL time.Duration
	Now       func() time.Time
}

type voiceService struct {
	buffers mongorepo.BufferRepository
	chats   ChatService
	stt     stt.Provider
	queue   events.Queue
	signer  storage.UploadSigner
	bucket  string

	ttl       time.Duration
	uploadTTL time.Duration
	now       func() time.Time
}

func NewVoiceService(d VoiceServiceDeps) VoiceService {
	if d.TTL <= 0 {
		d.TTL = 24 * time.Hour
	}
	if d.UploadTTL <= 0 {
		d.UploadTTL = 10 * time.Minute
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &voiceService{
		buffers:   d.Buffers,
		chats:     d.Chats,
		stt:       d.STT,
		queue:     d.Queue,
		signer:    d.Signer,
		bucket:    d.Bucket,
		ttl:       d.TTL,
		uploadTTL: d.UploadTTL,
		now:       d.Now,
	}
}

func (s *voiceService) SendVoice(ctx context.Context, chatID string, audio []byte, opts stt.Options) (*VoiceTurnView, error) {
	const op = "VoiceService.SendVoice"

	if chatID == "" || len(audio) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chat_id and audio are required", nil)
	}
	if s.stt == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "speech recognition is not configured", nil)
	}

	text, conf, err := s.stt.Transcribe(ctx, audio, opts)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "speech recognition failed", err)
	}
	out := &VoiceTurnView{Transcript: text, Confidence: conf}
	if text == "" {
		return out, nil
	}

	turn, err := s.chats.Send(ctx, chatID, text)
	if err != nil {
		return nil, err
	}
	out.Turn = turn
	return out, nil
}

func (s *voiceService) UploadURL(ctx context.Context, chatID string, chunkIndex int64, format stt.Format) (*VoiceUpload, error) {
	const op = "VoiceService.UploadURL"

	if chatID == "" || chunkIndex <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chat_id is required and chunk_index must be > 0", nil)
	}
	if s.signer == nil || s.bucket == "" {
		return nil, utils.E(utils.CodeUnavailable, op, "voice uploads are not configured", nil)
	}

	obj := storage.VoiceObject(chatID, chunkIndex, format.Ext())
	signed, err := s.signer.SignedPutURL(ctx, obj, format.ContentType(), s.uploadTTL)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to sign voice upload", err)
	}
	return &VoiceUpload{
		AudioURL:    "gs://" + s.bucket + "/" + obj,
		UploadURL:   signed,
		ContentType: format.ContentType(),
		ExpiresAt:   s.now().UTC().Add(s.uploadTTL),
	}, nil
}

func (s *voiceService) Enqueue(ctx context.Context, c VoiceChunk) (*models.VoiceBuffer, error) {
	const op = "VoiceService.Enqueue"

	if c.ChatID == "" || c.ChunkIndex <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chat_id is required and chunk_index must be > 0", nil)
	}
	byURL := c.AudioURL != nil && *c.AudioURL != ""
	inline := c.AudioBase64 != nil && *c.AudioBase64 != ""
	if !byURL && !inline {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio_url or audio_base64 is required", nil)
	}

	var object string
	if byURL {
		obj, ok := storage.ParseObjectURL(s.bucket, *c.AudioURL)
		if !ok || !strings.HasPrefix(obj, storage.VoicePrefix(c.ChatID)) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "audio_url must reference a voice upload issued for this chat", nil)
		}
		object = obj
	}
	if s.queue == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "voice queue is not configured", nil)
	}

	now := s.now().UTC()
	doc := &models.VoiceBuffer{
		ChatID:     c.ChatID,
		ChunkIndex: c.ChunkIndex,
		Language:   stt.NormalizeLanguage(c.Language),
		STTStatus:  models.StatusPending,
		TurnStatus: models.StatusPending,
		Timestamp:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if object != "" {
		gs := "gs://" + s.bucket + "/" + object
		doc.AudioURL = &gs
	} else {
		doc.AudioBase64 = c.AudioBase64
	}
	if err := s.buffers.InsertChunk(ctx, doc); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to buffer voice chunk", err)
	}

	values := map[string]any{
		"chat_id":     c.ChatID,
		"chunk_index": strconv.FormatInt(c.ChunkIndex, 10),
		"language":    doc.Language,
		"format":      string(c.Format),
	}
	if object != "" {
		values["audio_object"] = object
	} else {
		values["audio_base64"] = *c.AudioBase64
	}
	if _, err := s.queue.Add(ctx, events.VoiceStream, values); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to enqueue voice chunk", err)
	}
	return doc, nil
}

func (s *voiceService) MarkSTT(ctx context.Context, chatID string, chunkIndex int64, transcript string, confidence float64, status string) error {
	const op = "VoiceService.MarkSTT"

	if chatID == "" || chunkIndex <= 0 || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "chat_id, chunk_index (>0), and status are required", nil)
	}
	if err := s.buffers.UpdateSTT(ctx, chatID, chunkIndex, transcript, confidence, status); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "voice chunk not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to update stt fields", err)
	}
	return nil
}

func (s *voiceService) MarkTurn(ctx context.Context, chatID string, chunkIndex int64, outcome, status string, processingMS int64) error {
	const op = "VoiceService.MarkTurn"

	if chatID == "" || chunkIndex <= 0 || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "chat_id, chunk_index (>0), and status are required", nil)
	}
	if err := s.buffers.UpdateTurn(ctx, chatID, chunkIndex, outcome, status, processingMS); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "voice chunk not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to update turn fields", err)
	}
	return nil
}

func (s *voiceService) ListByChat(ctx context.Context, chatID string, limit int64) ([]models.VoiceBuffer, error) {
	const op = "VoiceService.ListByChat"

	if chatID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chat_id is required", nil)
	}
	out, err := s.buffers.ListByChat(ctx, chatID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list voice buffer", err)
	}
	return out, nil
}
