package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/models"
)

type Config struct {
	URL    string
	APIKey string
}

// rpcClient is the part of the supabase client the store uses.
type rpcClient interface {
	Rpc(name, count string, rpcBody interface{}) string
}

// Store writes chat traffic through the project's add_session_message
// function and PostgREST tables, so database-side triggers keep running.
type Store struct {
	client *supabase.Client
	rpc    rpcClient
}

func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Store{client: client, rpc: client}, nil
}

type addSessionMessageParams struct {
	ChatbotID string `json:"chatbot_id_param"`
	SessionID string `json:"session_id_param"`
	Content   string `json:"content_param"`
	Role      string `json:"role_param"`
}

func (s *Store) InsertMessage(ctx context.Context, chatbotID, sessionID, content string, role chatbot.Role) error {
	body := s.rpc.Rpc("add_session_message", "", addSessionMessageParams{
		ChatbotID: chatbotID,
		SessionID: sessionID,
		Content:   content,
		Role:      string(role),
	})
	if err := rpcError(body); err != nil {
		return fmt.Errorf("add_session_message: %w", err)
	}
	return nil
}

func (s *Store) FindConversationID(ctx context.Context, chatbotID, sessionID string) (string, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	_, err := s.client.From("conversations").
		Select("id", "", false).
		Eq("chatbot_id", chatbotID).
		Eq("session_id", sessionID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("failed to find conversation: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

func (s *Store) InsertLead(ctx context.Context, lead *chatbot.Lead) error {
	row, err := models.NewUserInteraction(lead)
	if err != nil {
		return err
	}
	if _, _, err := s.client.From("user_interactions").
		Insert(leadPayload(row), false, "", "minimal", "").
		Execute(); err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// leadPayload drops empty keys so column defaults apply.
func leadPayload(row *models.UserInteraction) map[string]any {
	out := map[string]any{
		"chatbot_id":           row.ChatbotID,
		"collected_data":       json.RawMessage(row.CollectedData),
		"sentiment":            row.Sentiment,
		"reaction":             row.Reaction,
		"conversation_history": []string(row.ConversationHistory),
	}
	if row.ConversationID != nil {
		out["conversation_id"] = *row.ConversationID
	}
	for k, v := range map[string]string{"session_id": row.SessionID, "email": row.Email, "name": row.Name, "phone": row.Phone} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

// rpcError inspects an RPC response body. The client only reports
// transport failures as an empty body; PostgREST errors arrive as JSON.
func rpcError(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return errors.New("empty response from supabase")
	}
	if !strings.HasPrefix(body, "{") {
		return nil
	}
	var pe postgrestError
	if err := json.Unmarshal([]byte(body), &pe); err != nil {
		return nil
	}
	if pe.Message == "" || pe.Code == "" {
		return nil
	}
	return fmt.Errorf("%s: %s", pe.Code, pe.Message)
}

var _ chatbot.Store = (*Store)(nil)
