package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/botdesk/internal/api/handlers"
	"github.com/yoockh/botdesk/internal/api/middleware"
	"github.com/yoockh/botdesk/internal/services"
)

type Deps struct {
	Chat         *handlers.ChatHandler
	WS           *handlers.WSHandler
	Lead         *handlers.LeadHandler
	Conversation *handlers.ConversationHandler
	Template     *handlers.TemplateHandler
	Chatbot      *handlers.ChatbotHandler

	Chatbots services.ChatbotService
	Chats    services.ChatService
	JWT      middleware.JWTConfig
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET("/templates", d.Template.List)

	// Widget routes (embed key)
	widget := r.Group("/widget")
	widget.POST("/chatbots/:chatbot_id/chats",
		middleware.WidgetKey(d.Chatbots.VerifyWidgetKey, middleware.FromParam("chatbot_id")),
		d.Chat.Open)

	chat := widget.Group("/chats/:chat_id")
	chat.Use(middleware.WidgetKey(d.Chatbots.VerifyWidgetKey, func(c *gin.Context) (string, error) {
		return d.Chats.ChatbotOf(c.Request.Context(), c.Param("chat_id"))
	}))
	chat.GET("", d.Chat.Get)
	chat.POST("/messages", d.Chat.Send)
	chat.POST("/voice", d.Chat.Voice)
	chat.POST("/voice/uploads", d.Chat.VoiceUpload)
	chat.POST("/reset", d.Chat.Reset)
	chat.POST("/clear", d.Chat.Clear)
	chat.GET("/ws", d.WS.ChatWS)

	// Dashboard routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWT), middleware.RequireDashboardUser())

	auth.DELETE("/leads/:id", d.Lead.Delete)

	bot := auth.Group("/chatbots/:id")
	bot.Use(middleware.RequireChatbotScope("id"))
	bot.GET("/leads", d.Lead.ListByChatbot)
	bot.GET("/conversations/:session_id/messages", d.Conversation.ListBySession)
	bot.POST("/export", d.Chatbot.Export)
	bot.POST("/widget-key", d.Chatbot.RotateWidgetKey)
}
