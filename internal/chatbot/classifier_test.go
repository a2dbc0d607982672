package chatbot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type stubTextClassifier struct {
	out    string
	err    error
	prompt string
	input  string
}

func (s *stubTextClassifier) Classify(ctx context.Context, prompt, input string) (string, error) {
	s.prompt = prompt
	s.input = input
	return s.out, s.err
}

func TestQuestionClassifier(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want ClassificationResult
		warn bool
	}{
		{
			name: "valid response",
			out:  `{"needsKnowledgeBase": false, "isRelevant": true, "confidence": 0.8, "reasoning": "greeting"}`,
			want: ClassificationResult{NeedsKnowledgeBase: false, IsRelevant: true, Confidence: 0.8, Reasoning: "greeting"},
		},
		{
			name: "fenced response",
			out:  "```json\n{\"needsKnowledgeBase\": true, \"isRelevant\": false, \"confidence\": 0.9, \"reasoning\": \"weather\"}\n```",
			want: ClassificationResult{NeedsKnowledgeBase: true, IsRelevant: false, Confidence: 0.9, Reasoning: "weather"},
		},
		{name: "transport error", err: errors.New("deadline exceeded"), want: FailOpenClassification, warn: true},
		{name: "empty output", out: "   ", want: FailOpenClassification, warn: true},
		{name: "not json", out: "I think it is relevant", want: FailOpenClassification, warn: true},
		{name: "missing field", out: `{"needsKnowledgeBase": true, "isRelevant": true, "confidence": 0.4}`, want: FailOpenClassification, warn: true},
		{name: "confidence out of range", out: `{"needsKnowledgeBase": true, "isRelevant": true, "confidence": 3, "reasoning": "x"}`, want: FailOpenClassification, warn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			c := NewQuestionClassifier(&stubTextClassifier{out: tt.out, err: tt.err}, log)

			got := c.Classify(context.Background(), "hello", "pet grooming")
			if got.NeedsKnowledgeBase != tt.want.NeedsKnowledgeBase || got.IsRelevant != tt.want.IsRelevant || got.Confidence != tt.want.Confidence {
				t.Errorf("Classify = %+v, want %+v", got, tt.want)
			}
			if !tt.warn && got.Reasoning != tt.want.Reasoning {
				t.Errorf("reasoning = %q, want %q", got.Reasoning, tt.want.Reasoning)
			}
			if warned := hook.LastEntry() != nil && hook.LastEntry().Level == logrus.WarnLevel; warned != tt.warn {
				t.Errorf("warned = %v, want %v", warned, tt.warn)
			}
		})
	}
}

func TestQuestionClassifier_Context(t *testing.T) {
	stub := &stubTextClassifier{out: `{"needsKnowledgeBase": false, "isRelevant": true, "confidence": 1, "reasoning": ""}`}
	log, _ := test.NewNullLogger()
	c := NewQuestionClassifier(stub, log)

	c.Classify(context.Background(), "hi", "")
	if !strings.Contains(stub.prompt, "Context about this chatbot: General purpose chatbot") {
		t.Errorf("prompt missing default context")
	}
	if stub.input != "hi" {
		t.Errorf("input = %q", stub.input)
	}
}

func TestQuestionClassifier_NoModel(t *testing.T) {
	log, _ := test.NewNullLogger()
	got := NewQuestionClassifier(nil, log).Classify(context.Background(), "hi", "x")
	if got.Confidence != 0.5 || !got.IsRelevant || !got.NeedsKnowledgeBase {
		t.Errorf("got %+v, want fail-open", got)
	}
}

func TestClassifyJSON_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		tc   TextClassifier
		kind ClassifierErrorKind
	}{
		{"nil classifier", nil, ClassifierUnavailable},
		{"transport", &stubTextClassifier{err: errors.New("boom")}, ClassifierUnavailable},
		{"empty fence", &stubTextClassifier{out: "```json\n```"}, ClassifierEmpty},
		{"malformed", &stubTextClassifier{out: "{"}, ClassifierMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classifyJSON[classificationPayload](context.Background(), tt.tc, "p", "i", nil)
			var ce *ClassifierError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ClassifierError", err)
			}
			if ce.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", ce.Kind, tt.kind)
			}
		})
	}
}

func TestSentimentAnalyzer(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		err      error
		texts    []string
		want     SentimentResult
		wantCall bool
	}{
		{
			name:     "escalates",
			out:      `{"sentiment": "unhappy", "shouldEscalate": true}`,
			texts:    []string{"this is useless", "I want a human"},
			want:     SentimentResult{Sentiment: SentimentUnhappy, ShouldEscalate: true},
			wantCall: true,
		},
		{
			name:     "normalizes case",
			out:      `{"sentiment": "Happy", "shouldEscalate": false}`,
			texts:    []string{"great, thanks"},
			want:     SentimentResult{Sentiment: SentimentHappy},
			wantCall: true,
		},
		{name: "unknown label", out: `{"sentiment": "angry", "shouldEscalate": true}`, texts: []string{"x"}, want: SentimentResult{Sentiment: SentimentNeutral}, wantCall: true},
		{name: "model error", err: errors.New("quota"), texts: []string{"x"}, want: SentimentResult{Sentiment: SentimentNeutral}, wantCall: true},
		{name: "no input", texts: nil, want: SentimentResult{Sentiment: SentimentNeutral}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubTextClassifier{out: tt.out, err: tt.err}
			log, _ := test.NewNullLogger()
			got := NewSentimentAnalyzer(stub, log).Analyze(context.Background(), tt.texts)
			if got != tt.want {
				t.Errorf("Analyze = %+v, want %+v", got, tt.want)
			}
			if called := stub.prompt != ""; called != tt.wantCall {
				t.Errorf("called = %v, want %v", called, tt.wantCall)
			}
			if tt.wantCall && stub.input != strings.Join(tt.texts, "\n") {
				t.Errorf("input = %q", stub.input)
			}
		})
	}
}
