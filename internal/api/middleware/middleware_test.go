package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

const testSecret = "test-secret"

func signToken(t *testing.T, claims dashboardClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

const testUser = "6f1c2a9e-3b7d-4c1e-9a2f-8d5e4b3c2a10"

func validClaims() dashboardClaims {
	return dashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testUser,
			Issuer:    "https://proj.supabase.co/auth/v1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "authenticated",
	}
}

func TestJWTAuth(t *testing.T) {
	cfg := JWTConfig{Secret: testSecret, Issuer: "https://proj.supabase.co/auth/v1", Audience: "authenticated"}

	admin := validClaims()
	admin.AppMetadata = appMetadata{Role: "Admin"}

	anon := validClaims()
	anon.Role = "anon"

	service := validClaims()
	service.Role = "service_role"

	wrongIss := validClaims()
	wrongIss.Issuer = "https://evil.supabase.co/auth/v1"

	notUUID := validClaims()
	notUUID.Subject = "user-1"

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"anon"}

	noSub := validClaims()
	noSub.Subject = ""

	tests := []struct {
		name     string
		header   string
		status   int
		wantRole string
	}{
		{"valid", "Bearer " + signToken(t, validClaims(), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusOK, "user"},
		{"admin role", "Bearer " + signToken(t, admin, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusOK, "admin"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signToken(t, validClaims(), jwt.SigningMethodHS256, []byte("other")), http.StatusUnauthorized, ""},
		{"wrong alg", "Bearer " + signToken(t, validClaims(), jwt.SigningMethodHS512, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signToken(t, expired, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"wrong audience", "Bearer " + signToken(t, wrongAud, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + signToken(t, noSub, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"anon key", "Bearer " + signToken(t, anon, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"service role", "Bearer " + signToken(t, service, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"wrong issuer", "Bearer " + signToken(t, wrongIss, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"subject not a user id", "Bearer " + signToken(t, notUUID, jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser, gotRole any
			r := gin.New()
			r.GET("/me", JWTAuth(cfg), func(c *gin.Context) {
				gotUser, _ = c.Get("user_id")
				gotRole, _ = c.Get("role")
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d body=%s", w.Code, w.Body)
			}
			if tt.status == http.StatusOK && (gotUser != testUser || gotRole != tt.wantRole) {
				t.Errorf("user=%v role=%v", gotUser, gotRole)
			}
		})
	}
}

func TestJWTAuth_NoSecret(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWTAuth(JWTConfig{}), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRequireChatbotScope(t *testing.T) {
	scoped := validClaims()
	scoped.AppMetadata = appMetadata{Chatbots: []string{"bot-1"}}

	scopedAdmin := validClaims()
	scopedAdmin.AppMetadata = appMetadata{Role: "admin", Chatbots: []string{"bot-1"}}

	tests := []struct {
		name    string
		claims  dashboardClaims
		chatbot string
		status  int
	}{
		{"unscoped token", validClaims(), "bot-2", http.StatusOK},
		{"scoped to this bot", scoped, "bot-1", http.StatusOK},
		{"scoped to another bot", scoped, "bot-2", http.StatusForbidden},
		{"admin ignores scope", scopedAdmin, "bot-2", http.StatusOK},
	}

	cfg := JWTConfig{Secret: testSecret}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Principal
			r := gin.New()
			r.GET("/chatbots/:id/leads", JWTAuth(cfg), RequireChatbotScope("id"), func(c *gin.Context) {
				got, _ = PrincipalFrom(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/chatbots/"+tt.chatbot+"/leads", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, tt.claims, jwt.SigningMethodHS256, []byte(testSecret)))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d body=%s", w.Code, w.Body)
			}
			if tt.status == http.StatusOK && got.UserID != testUser {
				t.Errorf("principal = %+v", got)
			}
		})
	}

	// without JWTAuth in front there is no principal
	r := gin.New()
	r.GET("/chatbots/:id/leads", RequireChatbotScope("id"), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chatbots/bot-1/leads", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no principal status = %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role   string
		status int
	}{
		{"user", http.StatusOK},
		{"ADMIN", http.StatusOK},
		{"anon", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			if tt.role != "" {
				c.Set("role", tt.role)
			}
			c.Next()
		}, RequireDashboardUser(), func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != tt.status {
			t.Errorf("role %q: status = %d", tt.role, w.Code)
		}
	}
}

func TestWidgetKey(t *testing.T) {
	verify := func(_ context.Context, chatbotID, key string) error {
		if chatbotID == "bot-1" && key == "wk_good" {
			return nil
		}
		return utils.E(utils.CodeUnauthorized, "ChatbotService.VerifyWidgetKey", "invalid widget key", nil)
	}

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"header key", "/w/bot-1", "wk_good", http.StatusOK},
		{"query key", "/w/bot-1?key=wk_good", "", http.StatusOK},
		{"missing key", "/w/bot-1", "", http.StatusUnauthorized},
		{"wrong key", "/w/bot-1", "wk_bad", http.StatusUnauthorized},
		{"other chatbot", "/w/bot-2", "wk_good", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got any
			r := gin.New()
			r.GET("/w/:chatbot_id", WidgetKey(verify, FromParam("chatbot_id")), func(c *gin.Context) {
				got, _ = c.Get("chatbot_id")
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(WidgetKeyHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d body=%s", w.Code, w.Body)
			}
			if tt.status == http.StatusOK && got != "bot-1" {
				t.Errorf("chatbot_id = %v", got)
			}
		})
	}
}

func TestWidgetKey_ResolverError(t *testing.T) {
	resolve := func(*gin.Context) (string, error) {
		return "", utils.E(utils.CodeNotFound, "ChatService.ChatbotOf", "chat not found", nil)
	}
	r := gin.New()
	r.GET("/c/:chat_id", WidgetKey(func(context.Context, string, string) error { return nil }, resolve),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/c/x", nil)
	req.Header.Set(WidgetKeyHeader, "wk_any")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(RequestLogger(l))
	r.GET("/widget/chats/:chat_id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/widget/chats/chat-9", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "req-1" {
		t.Errorf("request id header = %q", w.Header().Get("X-Request-Id"))
	}
	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"chat_id":"chat-9"`, `"status":418`, `"level":"warning"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("log %s missing %s", out, want)
		}
	}
}
