package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/botdesk/internal/services"
)

type LeadHandler struct {
	svc services.LeadService
}

func NewLeadHandler(svc services.LeadService) *LeadHandler {
	return &LeadHandler{svc: svc}
}

func (h *LeadHandler) ListByChatbot(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	chatbotID := c.Param("id")
	rows, err := h.svc.ListByChatbot(c.Request.Context(), userID, chatbotID, queryLimit(c, 100, 500))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chatbot_id": chatbotID,
		"leads":      rows,
	})
}

func (h *LeadHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
