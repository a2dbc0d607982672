package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		" WARN ":  logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"trace":   logrus.TraceLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("info", &buf)
	l.WithField("chatbot_id", "bot-1").Info("turn finished")
	l.Debug("dropped")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not a single JSON line: %v (%q)", err, buf.String())
	}
	if entry["chatbot_id"] != "bot-1" || entry["msg"] != "turn finished" {
		t.Errorf("entry = %v", entry)
	}
}
