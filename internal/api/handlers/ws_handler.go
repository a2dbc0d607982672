package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/events"
	"github.com/yoockh/botdesk/internal/providers/stt"
	"github.com/yoockh/botdesk/internal/services"
	"github.com/yoockh/botdesk/internal/utils"
)

type WSHandler struct {
	chats    services.ChatService
	voice    services.VoiceService
	redis    *redis.Client
	pub      events.Publisher
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler; allowOrigin nil accepts any origin, which suits a widget
// embedded on customer sites.
func NewWSHandler(chats services.ChatService, voice services.VoiceService, rdb *redis.Client, pub events.Publisher, log *logrus.Logger, allowOrigin func(*http.Request) bool) *WSHandler {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &WSHandler{
		chats:    chats,
		voice:    voice,
		redis:    rdb,
		pub:      pub,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
	}
}

type wsClientMsg struct {
	Type string `json:"type"` // message|audio_chunk|reset|clear

	Text string `json:"text"`

	ChunkIndex  int64  `json:"chunk_index"`
	Language    string `json:"language"`
	Format      string `json:"format"`
	AudioBase64 string `json:"audio_base64"`
	AudioURL    string `json:"audio_url"`
}

type wsError struct {
	Type    string     `json:"type"`
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func newWSError(err error) *wsError {
	msg := "internal error"
	if ae, ok := utils.AsAppError(err); ok && ae.Message != "" {
		msg = ae.Message
	}
	return &wsError{Type: events.TypeError, Code: utils.CodeOf(err), Message: msg}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.writeText(b)
}

// ChatWS streams a widget chat. Client frames drive turns; results reach
// every socket on the chat through its Redis channel.
func (h *WSHandler) ChatWS(c *gin.Context) {
	chatID := c.Param("chat_id")
	if _, err := h.chats.Get(c.Request.Context(), chatID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.redis.Subscribe(ctx, events.ChatChannel(chatID))
	defer pubsub.Close()

	readDone := make(chan struct{})
	go func() {
		// A closed socket must also stop the subscription and any turn
		// still running on its behalf.
		defer cancel()
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeJSON(wsError{Type: events.TypeError, Code: utils.CodeInvalidArgument, Message: "invalid json"})
				continue
			}
			if e := h.dispatch(ctx, chatID, msg); e != nil {
				_ = wc.writeJSON(e)
			}
		}
	}()

	forwardEvents(ctx, pubsub.Channel(), readDone, wc.writeText)
}

// forwardEvents copies chat channel payloads to the socket until the reader
// stops, the context ends, the subscription closes or a write fails.
func forwardEvents(ctx context.Context, msgs <-chan *redis.Message, readDone <-chan struct{}, write func([]byte) error) {
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := write([]byte(m.Payload)); err != nil {
				return
			}
		}
	}
}

// dispatch runs one client frame. Successful results are published on the
// chat channel by the services; only failures are returned for the caller.
func (h *WSHandler) dispatch(ctx context.Context, chatID string, msg wsClientMsg) *wsError {
	switch msg.Type {
	case "message":
		if _, err := h.chats.Send(ctx, chatID, msg.Text); err != nil {
			return newWSError(err)
		}

	case "audio_chunk":
		if h.voice == nil {
			return newWSError(utils.E(utils.CodeUnavailable, "WSHandler.dispatch", "voice input is not enabled", nil))
		}
		chunk := services.VoiceChunk{
			ChatID:     chatID,
			ChunkIndex: msg.ChunkIndex,
			Language:   msg.Language,
			Format:     stt.ParseFormat(msg.Format),
		}
		if msg.AudioBase64 != "" {
			chunk.AudioBase64 = &msg.AudioBase64
		}
		if msg.AudioURL != "" {
			chunk.AudioURL = &msg.AudioURL
		}
		if _, err := h.voice.Enqueue(ctx, chunk); err != nil {
			return newWSError(err)
		}
		h.publish(ctx, chatID, events.ChatEvent{
			Type:       events.TypeStatus,
			ChatID:     chatID,
			ChunkIndex: msg.ChunkIndex,
			Status:     "queued",
			Message:    "audio chunk queued",
		})

	case "reset", "clear":
		var (
			view *services.ChatView
			err  error
		)
		if msg.Type == "reset" {
			view, err = h.chats.Reset(ctx, chatID)
		} else {
			view, err = h.chats.Clear(ctx, chatID)
		}
		if err != nil {
			return newWSError(err)
		}
		h.publish(ctx, chatID, events.ChatEvent{
			Type:   events.TypeStatus,
			ChatID: chatID,
			Status: msg.Type,
			Data:   view,
		})

	default:
		return &wsError{Type: events.TypeError, Code: utils.CodeInvalidArgument, Message: "unknown message type"}
	}
	return nil
}

func (h *WSHandler) publish(ctx context.Context, chatID string, ev events.ChatEvent) {
	if h.pub == nil {
		return
	}
	if err := h.pub.Publish(ctx, events.ChatChannel(chatID), ev); err != nil && h.log != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Warn("publish chat event failed")
	}
}
