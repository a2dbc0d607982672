package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/botdesk/internal/services"
)

type ChatbotHandler struct {
	chatbots services.ChatbotService
	exports  services.ExportService
}

func NewChatbotHandler(chatbots services.ChatbotService, exports services.ExportService) *ChatbotHandler {
	return &ChatbotHandler{chatbots: chatbots, exports: exports}
}

func (h *ChatbotHandler) Export(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	res, err := h.exports.Export(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RotateWidgetKey returns the new key once; only its hash is kept.
func (h *ChatbotHandler) RotateWidgetKey(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	key, err := h.chatbots.RotateWidgetKey(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chatbot_id": c.Param("id"),
		"widget_key": key,
	})
}
