package chatbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const sentimentPrompt = `You analyze the mood of a customer talking to a support chatbot.
You receive the customer's most recent messages, oldest first, one per line.
Judge the overall trend of the batch rather than any single message.

Respond with ONLY a JSON object in this exact format:
{
  "sentiment": "happy" | "neutral" | "unhappy",
  "shouldEscalate": boolean
}

Set shouldEscalate to true only when the customer is clearly and repeatedly
frustrated, angry, or asking for a human.`

type sentimentPayload struct {
	Sentiment      Sentiment `json:"sentiment"`
	ShouldEscalate *bool     `json:"shouldEscalate"`
}

func (p *sentimentPayload) validate() error {
	p.Sentiment = Sentiment(strings.ToLower(strings.TrimSpace(string(p.Sentiment))))
	if !p.Sentiment.valid() {
		return fmt.Errorf("unknown sentiment %q", p.Sentiment)
	}
	if p.ShouldEscalate == nil {
		return fmt.Errorf("missing shouldEscalate")
	}
	return nil
}

// ModelSentimentAnalyzer scores a batch of user messages with a model.
// Failures degrade to a neutral, non-escalating verdict.
type ModelSentimentAnalyzer struct {
	tc  TextClassifier
	log logrus.FieldLogger
}

func NewSentimentAnalyzer(tc TextClassifier, log logrus.FieldLogger) *ModelSentimentAnalyzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ModelSentimentAnalyzer{tc: tc, log: log}
}

func (a *ModelSentimentAnalyzer) Analyze(ctx context.Context, recentUserTexts []string) SentimentResult {
	neutral := SentimentResult{Sentiment: SentimentNeutral}
	if len(recentUserTexts) == 0 {
		return neutral
	}

	p, err := classifyJSON(ctx, a.tc, sentimentPrompt, strings.Join(recentUserTexts, "\n"), (*sentimentPayload).validate)
	if err != nil {
		a.log.WithError(err).Warn("sentiment analysis degraded")
		return neutral
	}
	return SentimentResult{Sentiment: p.Sentiment, ShouldEscalate: *p.ShouldEscalate}
}
