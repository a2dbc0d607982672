package workers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/events"
	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/providers/stt"
	"github.com/yoockh/botdesk/internal/services"
	"github.com/yoockh/botdesk/internal/storage"
)

const maxAudioBytes = 10 << 20

// VoiceWorkerPool consumes queued voice chunks: transcribe, then run the
// transcript as a chat turn.
type VoiceWorkerPool struct {
	Redis      *redis.Client
	Voice      services.VoiceService
	Chats      services.ChatService
	STT        stt.Provider
	Events     events.Publisher
	NumWorkers int

	// Audio reads uploaded chunks from the voice bucket. Without it only
	// inline chunks can be processed.
	Audio storage.Downloader

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *VoiceWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Voice == nil || p.Chats == nil || p.STT == nil {
		return errors.New("VoiceWorkerPool missing dependency: Redis/Voice/Chats/STT must be set")
	}
	p.setDefaults()

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // BUSYGROUP when it exists

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *VoiceWorkerPool) setDefaults() {
	if p.Stream == "" {
		p.Stream = events.VoiceStream
	}
	if p.Group == "" {
		p.Group = "voice-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Events == nil {
		p.Events = events.Nop{}
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

func (p *VoiceWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handle(ctx, voiceJobFrom(msg))
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

type voiceJob struct {
	ID          string
	ChatID      string
	ChunkIndex  int64
	Language    string
	Format      stt.Format
	AudioBase64 string
	AudioObject string
}

func voiceJobFrom(msg redis.XMessage) voiceJob {
	get := func(k string) string {
		s, _ := msg.Values[k].(string)
		return s
	}
	idx, _ := strconv.ParseInt(get("chunk_index"), 10, 64)
	return voiceJob{
		ID:          msg.ID,
		ChatID:      get("chat_id"),
		ChunkIndex:  idx,
		Language:    get("language"),
		Format:      stt.ParseFormat(get("format")),
		AudioBase64: get("audio_base64"),
		AudioObject: get("audio_object"),
	}
}

func (p *VoiceWorkerPool) handle(ctx context.Context, job voiceJob) {
	if job.ChatID == "" || job.ChunkIndex <= 0 {
		return
	}
	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":    job.ID,
		"chat_id":     job.ChatID,
		"chunk_index": job.ChunkIndex,
	})

	audio, err := p.fetchAudio(ctx, job)
	if err != nil {
		log.WithError(err).Warn("voice chunk unreadable")
		_ = p.Voice.MarkSTT(ctx, job.ChatID, job.ChunkIndex, "", 0, models.StatusFailed)
		p.status(ctx, job, models.StatusFailed, err.Error())
		return
	}

	_ = p.Voice.MarkSTT(ctx, job.ChatID, job.ChunkIndex, "", 0, models.StatusProcessing)
	p.status(ctx, job, models.StatusProcessing, "stt processing")

	text, conf, err := p.STT.Transcribe(ctx, audio, stt.Options{Language: job.Language, Format: job.Format})
	if err != nil {
		log.WithError(err).Error("stt failed")
		_ = p.Voice.MarkSTT(ctx, job.ChatID, job.ChunkIndex, "", 0, models.StatusFailed)
		p.status(ctx, job, models.StatusFailed, "stt failed")
		return
	}
	_ = p.Voice.MarkSTT(ctx, job.ChatID, job.ChunkIndex, text, conf, models.StatusDone)
	p.publish(ctx, job.ChatID, events.ChatEvent{
		Type:       events.TypeSTT,
		ChatID:     job.ChatID,
		ChunkIndex: job.ChunkIndex,
		Text:       text,
		Confidence: conf,
	})

	if strings.TrimSpace(text) == "" {
		_ = p.Voice.MarkTurn(ctx, job.ChatID, job.ChunkIndex, "", models.StatusDone, 0)
		p.status(ctx, job, models.StatusDone, "no speech detected")
		return
	}

	start := time.Now()
	_ = p.Voice.MarkTurn(ctx, job.ChatID, job.ChunkIndex, "", models.StatusProcessing, 0)

	// Send publishes the turn on the chat channel itself.
	turn, err := p.Chats.Send(ctx, job.ChatID, text)
	procMS := time.Since(start).Milliseconds()
	if err != nil {
		log.WithError(err).Error("voice turn failed")
		_ = p.Voice.MarkTurn(ctx, job.ChatID, job.ChunkIndex, "", models.StatusFailed, procMS)
		p.status(ctx, job, models.StatusFailed, "turn failed")
		return
	}
	_ = p.Voice.MarkTurn(ctx, job.ChatID, job.ChunkIndex, string(turn.Outcome), models.StatusDone, procMS)
	p.status(ctx, job, models.StatusDone, "chunk processed")
}

func (p *VoiceWorkerPool) fetchAudio(ctx context.Context, job voiceJob) ([]byte, error) {
	if job.AudioBase64 != "" {
		return decodeAudio(job.AudioBase64)
	}
	if job.AudioObject == "" {
		return nil, errors.New("no audio in job")
	}
	// Queue entries are re-checked so a forged stream entry cannot read
	// another chat's uploads.
	if !strings.HasPrefix(job.AudioObject, storage.VoicePrefix(job.ChatID)) {
		return nil, errors.New("audio object outside the chat's upload prefix")
	}
	if p.Audio == nil {
		return nil, errors.New("voice bucket not configured")
	}

	body, err := p.Audio.Download(ctx, job.AudioObject, maxAudioBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio object: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty audio")
	}
	return body, nil
}

// decodeAudio accepts raw base64 or a data URL ("data:audio/webm;base64,...").
func decodeAudio(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.New("invalid audio_base64")
	}
	if len(b) == 0 {
		return nil, errors.New("empty audio")
	}
	return b, nil
}

func (p *VoiceWorkerPool) status(ctx context.Context, job voiceJob, status, message string) {
	p.publish(ctx, job.ChatID, events.ChatEvent{
		Type:       events.TypeStatus,
		ChatID:     job.ChatID,
		ChunkIndex: job.ChunkIndex,
		Status:     status,
		Message:    message,
	})
}

func (p *VoiceWorkerPool) publish(ctx context.Context, chatID string, ev events.ChatEvent) {
	if err := p.Events.Publish(ctx, events.ChatChannel(chatID), ev); err != nil {
		p.Logger.WithError(err).WithField("chat_id", chatID).Warn("publish voice event failed")
	}
}
