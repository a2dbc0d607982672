package services

import (
	"context"
	"testing"
	"time"

	"github.com/yoockh/botdesk/internal/models"
	"github.com/yoockh/botdesk/internal/utils"
)

type fakeLeadRepo struct {
	rows     map[string]*models.UserInteraction
	gotLimit int
}

func (f *fakeLeadRepo) Insert(_ context.Context, row *models.UserInteraction) error {
	f.rows[row.ID] = row
	return nil
}

func (f *fakeLeadRepo) ListByChatbot(_ context.Context, chatbotID string, limit int) ([]models.UserInteraction, error) {
	f.gotLimit = limit
	var out []models.UserInteraction
	for _, r := range f.rows {
		if r.ChatbotID == chatbotID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeLeadRepo) GetByID(_ context.Context, id string) (*models.UserInteraction, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return r, nil
}

func (f *fakeLeadRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return utils.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func newLeadFixture() (*fakeLeadRepo, LeadService) {
	leads := &fakeLeadRepo{rows: map[string]*models.UserInteraction{
		"lead-1": {ID: "lead-1", ChatbotID: "bot-1", Email: "a@b.co", CreatedAt: time.Now()},
		"lead-2": {ID: "lead-2", ChatbotID: "bot-2", Email: "c@d.co", CreatedAt: time.Now()},
	}}
	bots := &fakeChatbotRepo{rows: map[string]*models.Chatbot{
		"bot-1": testChatbot("bot-1", "owner-1"),
		"bot-2": testChatbot("bot-2", "owner-2"),
	}}
	return leads, NewLeadService(leads, NewChatbotService(bots, nil, 0, quietLogger()))
}

func TestLeadService_ListByChatbot(t *testing.T) {
	leads, svc := newLeadFixture()
	ctx := context.Background()

	out, err := svc.ListByChatbot(ctx, "owner-1", "bot-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "lead-1" {
		t.Errorf("leads = %+v", out)
	}
	if leads.gotLimit != 100 {
		t.Errorf("default limit = %d", leads.gotLimit)
	}

	if _, err := svc.ListByChatbot(ctx, "owner-1", "bot-2", 10); !utils.IsCode(err, utils.CodeForbidden) {
		t.Errorf("foreign chatbot err = %v", err)
	}
}

func TestLeadService_Delete(t *testing.T) {
	leads, svc := newLeadFixture()
	ctx := context.Background()

	if err := svc.Delete(ctx, "owner-1", "lead-2"); !utils.IsCode(err, utils.CodeForbidden) {
		t.Errorf("foreign lead err = %v", err)
	}
	if err := svc.Delete(ctx, "owner-1", "missing"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Errorf("missing lead err = %v", err)
	}
	if err := svc.Delete(ctx, "owner-1", "lead-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := leads.rows["lead-1"]; ok {
		t.Error("lead-1 still present")
	}
}
