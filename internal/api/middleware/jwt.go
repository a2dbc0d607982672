package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yoockh/botdesk/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// dashboardClaims is the Supabase access token as issued to dashboard users.
// app_metadata is only writable with the service key, so the operator role
// and the chatbot scope it carries can be trusted.
type dashboardClaims struct {
	jwt.RegisteredClaims
	Role        string      `json:"role"`
	AppMetadata appMetadata `json:"app_metadata"`
}

type appMetadata struct {
	Role string `json:"role"`
	// Chatbots narrows a token to the listed chatbot ids, e.g. for an agent
	// invited to answer leads of one bot. Empty means every owned chatbot.
	Chatbots []string `json:"chatbots"`
}

// Principal is the authenticated dashboard caller.
type Principal struct {
	UserID   string
	Role     string
	Chatbots []string
}

// CanAccessChatbot reports whether the token scope admits chatbotID.
// Ownership is still checked by the services.
func (p Principal) CanAccessChatbot(chatbotID string) bool {
	if p.Role == "admin" || len(p.Chatbots) == 0 {
		return true
	}
	return slices.Contains(p.Chatbots, chatbotID)
}

const principalKey = "principal"

// PrincipalFrom returns the caller set by JWTAuth.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// JWTConfig mirrors config.AuthConfig; issuer and audience are optional.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// JWTAuth authenticates dashboard requests carrying a Supabase access token
// of a signed-in user. Anonymous and service-role tokens are refused: the
// anon key ships inside the widget and the service key bypasses ownership.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	keyFunc := func(t *jwt.Token) (any, error) { return []byte(cfg.Secret), nil }
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		if cfg.Secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{
				Code:    utils.CodeInternal,
				Message: "SUPABASE_JWT_SECRET is not set",
			})
			return
		}

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}

		claims := &dashboardClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
			unauthorized(c, "invalid token")
			return
		}
		if claims.Role != "authenticated" {
			unauthorized(c, "dashboard requires a signed-in user")
			return
		}
		if _, err := uuid.Parse(claims.Subject); err != nil {
			unauthorized(c, "invalid token subject")
			return
		}

		p := Principal{
			UserID:   claims.Subject,
			Role:     "user",
			Chatbots: claims.AppMetadata.Chatbots,
		}
		if r := strings.ToLower(strings.TrimSpace(claims.AppMetadata.Role)); r != "" {
			p.Role = r
		}

		c.Set(principalKey, p)
		c.Set("user_id", p.UserID)
		c.Set("role", p.Role)
		c.Next()
	}
}

// RequireChatbotScope rejects tokens whose chatbot scope excludes the
// chatbot named by the route param.
func RequireChatbotScope(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			unauthorized(c, "unauthorized")
			return
		}
		if !p.CanAccessChatbot(c.Param(param)) {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "token is not scoped to this chatbot",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	return raw, ok && raw != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Code: utils.CodeUnauthorized, Message: msg})
}
