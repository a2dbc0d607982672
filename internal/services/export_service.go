package services

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/yoockh/botdesk/internal/storage"
	"github.com/yoockh/botdesk/internal/utils"
)

// ChatbotExport is the portable form of a chatbot.
type ChatbotExport struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Configuration json.RawMessage `json:"configuration"`
	KnowledgeBase *string         `json:"knowledge_base"`
}

type ExportResult struct {
	Path        string    `json:"path"`
	DownloadURL string    `json:"download_url,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

type ExportService interface {
	Export(ctx context.Context, userID, chatbotID string) (*ExportResult, error)
}

type exportService struct {
	chatbots ChatbotService
	uploader storage.Uploader
	signer   storage.Signer
	urlTTL   time.Duration
	now      func() time.Time
}

// NewExportService; signer may be nil, in which case no download URL is
// returned.
func NewExportService(chatbots ChatbotService, uploader storage.Uploader, signer storage.Signer) ExportService {
	return &exportService{
		chatbots: chatbots,
		uploader: uploader,
		signer:   signer,
		urlTTL:   15 * time.Minute,
		now:      time.Now,
	}
}

func (s *exportService) Export(ctx context.Context, userID, chatbotID string) (*ExportResult, error) {
	const op = "ExportService.Export"

	if s.uploader == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "export storage is not configured", nil)
	}
	row, err := s.chatbots.GetOwned(ctx, userID, chatbotID)
	if err != nil {
		return nil, err
	}

	conf := json.RawMessage(row.Configuration)
	if len(conf) == 0 {
		conf = json.RawMessage("{}")
	}
	body, err := json.MarshalIndent(ChatbotExport{
		Name:          row.Name,
		Description:   row.Description,
		Configuration: conf,
		KnowledgeBase: row.KnowledgeBaseID,
	}, "", "  ")
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode export", err)
	}

	at := s.now().UTC()
	object := storage.ExportObject(chatbotID, at)
	path, err := s.uploader.Upload(ctx, object, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload export", err)
	}

	out := &ExportResult{Path: path, ExportedAt: at}
	if s.signer != nil {
		if url, err := s.signer.SignedGetURL(ctx, object, s.urlTTL); err == nil {
			out.DownloadURL = url
		}
	}
	return out, nil
}
