package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/utils"
)

func TestExportService_Export(t *testing.T) {
	kb := "kb-42"
	row := testChatbot("bot-1", "owner-1")
	row.KnowledgeBaseID = &kb
	bots := &fakeChatbotRepo{rows: map[string]*models.Chatbot{"bot-1": row}}
	up := newFakeUploader()

	svc := NewExportService(NewChatbotService(bots, nil, 0, quietLogger()), up, fakeSigner{}).(*exportService)
	svc.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC) }

	res, err := svc.Export(context.Background(), "owner-1", "bot-1")
	if err != nil {
		t.Fatal(err)
	}
	const object = "exports/bot-1/20240203T040506Z.json"
	if res.Path != "gs://bucket/"+object || res.DownloadURL != "https://signed.example/"+object {
		t.Errorf("result = %+v", res)
	}
	if up.types[object] != "application/json" {
		t.Errorf("content type = %q", up.types[object])
	}

	var got struct {
		Name          string         `json:"name"`
		Description   string         `json:"description"`
		Configuration map[string]any `json:"configuration"`
		KnowledgeBase *string        `json:"knowledge_base"`
	}
	if err := json.Unmarshal(up.objects[object], &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "Support Bot" || got.Configuration["template"] != "customer-support" {
		t.Errorf("export = %+v", got)
	}
	if got.KnowledgeBase == nil || *got.KnowledgeBase != "kb-42" {
		t.Errorf("knowledge_base = %v", got.KnowledgeBase)
	}
}

func TestExportService_Errors(t *testing.T) {
	bots := &fakeChatbotRepo{rows: map[string]*models.Chatbot{"bot-1": testChatbot("bot-1", "owner-1")}}
	chatbots := NewChatbotService(bots, nil, 0, quietLogger())
	ctx := context.Background()

	if _, err := NewExportService(chatbots, nil, nil).Export(ctx, "owner-1", "bot-1"); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Errorf("no uploader err = %v", err)
	}

	up := newFakeUploader()
	if _, err := NewExportService(chatbots, up, nil).Export(ctx, "other", "bot-1"); !utils.IsCode(err, utils.CodeForbidden) {
		t.Errorf("foreign err = %v", err)
	}

	up.err = errors.New("quota")
	if _, err := NewExportService(chatbots, up, nil).Export(ctx, "owner-1", "bot-1"); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Errorf("upload err = %v", err)
	}
}
