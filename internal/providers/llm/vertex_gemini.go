package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/yoockh/botdesk/internal/chatbot"
)

const defaultSystemPrompt = "You are a helpful AI assistant."

type VertexGemini struct {
	client          *vertexgenai.Client
	chatModel       string
	classifierModel string
}

func NewVertexGemini(ctx context.Context, projectID, location, chatModel, classifierModel string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if chatModel == "" {
		chatModel = "gemini-1.5-flash"
	}
	if classifierModel == "" {
		classifierModel = chatModel
	}
	return &VertexGemini{client: c, chatModel: chatModel, classifierModel: classifierModel}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// Generate answers the last user message of req.History, replaying the
// earlier messages as chat history.
func (v *VertexGemini) Generate(ctx context.Context, req chatbot.GenerateRequest) (*chatbot.Reply, error) {
	if len(req.History) == 0 {
		return nil, errors.New("generate: empty history")
	}
	last := req.History[len(req.History)-1]
	if last.Role != chatbot.RoleUser {
		return nil, errors.New("generate: history must end with a user message")
	}

	m := v.client.GenerativeModel(v.chatModel)
	m.SystemInstruction = &vertexgenai.Content{
		Parts: []vertexgenai.Part{vertexgenai.Text(systemInstruction(req))},
	}
	m.SetTemperature(0.7)
	m.SetMaxOutputTokens(1024)

	cs := m.StartChat()
	cs.History = toContents(req.History[:len(req.History)-1])

	resp, err := cs.SendMessage(ctx, vertexgenai.Text(last.Content))
	if err != nil {
		return nil, err
	}
	text := responseText(resp)
	if text == "" {
		return nil, errors.New("generate: model returned no text")
	}
	return &chatbot.Reply{Message: text}, nil
}

// Classify runs a classification prompt with JSON output forced.
func (v *VertexGemini) Classify(ctx context.Context, prompt, input string) (string, error) {
	m := v.client.GenerativeModel(v.classifierModel)
	m.SystemInstruction = &vertexgenai.Content{
		Parts: []vertexgenai.Part{vertexgenai.Text(prompt)},
	}
	m.SetTemperature(0.1)
	m.SetMaxOutputTokens(200)
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, vertexgenai.Text(input))
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func systemInstruction(req chatbot.GenerateRequest) string {
	var b strings.Builder
	if strings.TrimSpace(req.SystemPrompt) != "" {
		b.WriteString(req.SystemPrompt)
	} else {
		b.WriteString(defaultSystemPrompt)
	}
	if req.Persona != "" {
		fmt.Fprintf(&b, "\n\nKeep a %s tone in every reply.", req.Persona)
	}
	if req.Context != "" {
		b.WriteString("\n\nAnswer using the knowledge base excerpts below when they are relevant. ")
		b.WriteString("If they do not contain the answer, say so instead of guessing.\n\n")
		b.WriteString(req.Context)
	}
	return b.String()
}

// toContents converts chat history into Gemini contents. Gemini wants the
// history to open with a user turn and to alternate roles, so leading
// assistant messages are dropped and consecutive same-role messages merged.
func toContents(history []chatbot.HistoryMessage) []*vertexgenai.Content {
	var out []*vertexgenai.Content
	for _, h := range history {
		role := "user"
		if h.Role == chatbot.RoleAssistant {
			role = "model"
		}
		if len(out) == 0 && role == "model" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, vertexgenai.Text(h.Content))
			continue
		}
		out = append(out, &vertexgenai.Content{Role: role, Parts: []vertexgenai.Part{vertexgenai.Text(h.Content)}})
	}
	return out
}

func responseText(resp *vertexgenai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return strings.TrimSpace(b.String())
}

var _ Provider = (*VertexGemini)(nil)
