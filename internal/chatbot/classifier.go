package chatbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const classifierPrompt = `You are a question classifier for a chatbot system. Your job is to determine:
1. Whether a question requires searching the knowledge base
2. Whether the question is relevant to the chatbot's purpose

Context about this chatbot: %s

Respond with ONLY a JSON object in this exact format:
{
  "needsKnowledgeBase": boolean,
  "isRelevant": boolean,
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation"
}

Guidelines:
- needsKnowledgeBase: true if the question asks about specific information, documentation, policies, procedures, or company-specific details
- needsKnowledgeBase: false for general questions, greetings, small talk, or common knowledge
- isRelevant: true if the question relates to the chatbot's purpose or domain
- isRelevant: false for completely off-topic questions
- confidence: how certain you are about the classification (0.0-1.0)

Examples:
- "What are your business hours?" → needsKnowledgeBase: true, isRelevant: true
- "How do I reset my password?" → needsKnowledgeBase: true, isRelevant: true
- "Hello, how are you?" → needsKnowledgeBase: false, isRelevant: true
- "What's the weather like?" → needsKnowledgeBase: false, isRelevant: false
- "Tell me about your pricing plans" → needsKnowledgeBase: true, isRelevant: true
- "What's 2+2?" → needsKnowledgeBase: false, isRelevant: false`

// FailOpenClassification is returned whenever the model cannot be consulted.
var FailOpenClassification = ClassificationResult{
	NeedsKnowledgeBase: true,
	IsRelevant:         true,
	Confidence:         0.5,
}

type classificationPayload struct {
	NeedsKnowledgeBase *bool    `json:"needsKnowledgeBase"`
	IsRelevant         *bool    `json:"isRelevant"`
	Confidence         *float64 `json:"confidence"`
	Reasoning          *string  `json:"reasoning"`
}

func (p *classificationPayload) validate() error {
	if p.NeedsKnowledgeBase == nil || p.IsRelevant == nil || p.Confidence == nil || p.Reasoning == nil {
		return errors.New("invalid classification response structure")
	}
	if *p.Confidence < 0 || *p.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", *p.Confidence)
	}
	return nil
}

// QuestionClassifier is the model-backed Classifier. It never fails: any
// collaborator problem degrades to FailOpenClassification.
type QuestionClassifier struct {
	tc  TextClassifier
	log logrus.FieldLogger
}

func NewQuestionClassifier(tc TextClassifier, log logrus.FieldLogger) *QuestionClassifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &QuestionClassifier{tc: tc, log: log}
}

func (c *QuestionClassifier) Classify(ctx context.Context, message, chatbotContext string) ClassificationResult {
	if chatbotContext == "" {
		chatbotContext = "General purpose chatbot"
	}

	p, err := classifyJSON(ctx, c.tc, fmt.Sprintf(classifierPrompt, chatbotContext), message, (*classificationPayload).validate)
	if err != nil {
		out := FailOpenClassification
		out.Reasoning = "classification degraded, defaulting to knowledge base search"
		c.log.WithError(err).Warn("question classification degraded")
		return out
	}

	return ClassificationResult{
		NeedsKnowledgeBase: *p.NeedsKnowledgeBase,
		IsRelevant:         *p.IsRelevant,
		Confidence:         *p.Confidence,
		Reasoning:          *p.Reasoning,
	}
}
