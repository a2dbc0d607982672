package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/botdesk/internal/providers/stt"
	"github.com/yoockh/botdesk/internal/services"
	"github.com/yoockh/botdesk/internal/utils"
)

// maxVoiceUpload bounds a single recorded message.
const maxVoiceUpload = 10 << 20

type ChatHandler struct {
	chats services.ChatService
	voice services.VoiceService
}

func NewChatHandler(chats services.ChatService, voice services.VoiceService) *ChatHandler {
	return &ChatHandler{chats: chats, voice: voice}
}

type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type VoiceUploadRequest struct {
	ChunkIndex int64  `json:"chunk_index" binding:"required"`
	Format     string `json:"format"`
}

func (h *ChatHandler) Open(c *gin.Context) {
	view, err := h.chats.Open(c.Request.Context(), c.Param("chatbot_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *ChatHandler) Get(c *gin.Context) {
	view, err := h.chats.Get(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Send", "invalid request body", err))
		return
	}

	turn, err := h.chats.Send(c.Request.Context(), c.Param("chat_id"), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}

func (h *ChatHandler) Reset(c *gin.Context) {
	view, err := h.chats.Reset(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ChatHandler) Clear(c *gin.Context) {
	view, err := h.chats.Clear(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Voice accepts a multipart "audio" file plus optional "language" and
// "format" fields and answers with the transcript and the turn it produced.
func (h *ChatHandler) Voice(c *gin.Context) {
	const op = "ChatHandler.Voice"

	fh, err := c.FormFile("audio")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio file is required", err))
		return
	}
	if fh.Size > maxVoiceUpload {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio file too large", nil))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unreadable audio file", err))
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, maxVoiceUpload))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unreadable audio file", err))
		return
	}

	out, err := h.voice.SendVoice(c.Request.Context(), c.Param("chat_id"), audio, stt.Options{
		Language: c.PostForm("language"),
		Format:   stt.ParseFormat(c.PostForm("format")),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// VoiceUpload issues a signed upload for one streamed chunk. The returned
// audio_url is the only URL form audio_chunk accepts.
func (h *ChatHandler) VoiceUpload(c *gin.Context) {
	var req VoiceUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.VoiceUpload", "invalid request body", err))
		return
	}

	up, err := h.voice.UploadURL(c.Request.Context(), c.Param("chat_id"), req.ChunkIndex, stt.ParseFormat(req.Format))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, up)
}
