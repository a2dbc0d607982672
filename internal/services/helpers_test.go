package services

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/botdesk/internal/models"
	"gorm.io/datatypes"
	"io"
)

func jsonMarshal(v any) ([]byte, error)   { return json.Marshal(v) }
func jsonUnmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testChatbot(id, owner string) *models.Chatbot {
	return &models.Chatbot{
		ID:            id,
		UserID:        owner,
		Name:          "Support Bot",
		Description:   "Answers questions about Acme",
		Configuration: datatypes.JSON(`{"template":"customer-support","welcomeMessage":"Hi there!"}`),
	}
}
