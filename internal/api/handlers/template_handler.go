package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/botdesk/internal/chatbot"
)

type TemplateHandler struct {
	catalog *chatbot.Catalog
}

func NewTemplateHandler(catalog *chatbot.Catalog) *TemplateHandler {
	if catalog == nil {
		catalog = chatbot.DefaultCatalog()
	}
	return &TemplateHandler{catalog: catalog}
}

func (h *TemplateHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": h.catalog.All()})
}
