package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/botdesk/internal/utils"
)

const WidgetKeyHeader = "X-Widget-Key"

// ChatbotResolver finds the chatbot a widget request targets.
type ChatbotResolver func(c *gin.Context) (string, error)

// FromParam resolves the chatbot id straight from a path parameter.
func FromParam(name string) ChatbotResolver {
	return func(c *gin.Context) (string, error) {
		return c.Param(name), nil
	}
}

// WidgetKey authenticates embedded widget traffic. The key is read from the
// X-Widget-Key header, or the "key" query parameter for WebSocket upgrades
// where browsers cannot set headers.
func WidgetKey(verify func(ctx context.Context, chatbotID, key string) error, resolve ChatbotResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(WidgetKeyHeader))
		if key == "" {
			key = strings.TrimSpace(c.Query("key"))
		}
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "missing widget key",
			})
			return
		}

		chatbotID, err := resolve(c)
		if err != nil {
			c.AbortWithStatusJSON(utils.HTTPStatus(err), apiError{
				Code:    utils.CodeOf(err),
				Message: safeMessage(err),
			})
			return
		}
		if chatbotID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, apiError{
				Code:    utils.CodeInvalidArgument,
				Message: "missing chatbot id",
			})
			return
		}

		if err := verify(c.Request.Context(), chatbotID, key); err != nil {
			c.AbortWithStatusJSON(utils.HTTPStatus(err), apiError{
				Code:    utils.CodeOf(err),
				Message: safeMessage(err),
			})
			return
		}

		c.Set("chatbot_id", chatbotID)
		c.Next()
	}
}

func safeMessage(err error) string {
	if ae, ok := utils.AsAppError(err); ok && ae.Message != "" {
		return ae.Message
	}
	return http.StatusText(utils.HTTPStatus(err))
}
