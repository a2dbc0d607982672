package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type ClassifierErrorKind string

const (
	ClassifierUnavailable ClassifierErrorKind = "unavailable"
	ClassifierEmpty       ClassifierErrorKind = "empty"
	ClassifierMalformed   ClassifierErrorKind = "malformed"
)

// ClassifierError is the single failure shape of a TextClassifier call,
// whether the model was unreachable, silent, or returned bad JSON.
type ClassifierError struct {
	Kind ClassifierErrorKind
	Err  error
}

func (e *ClassifierError) Error() string {
	if e.Err == nil {
		return "classifier " + string(e.Kind)
	}
	return fmt.Sprintf("classifier %s: %v", e.Kind, e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

var errNoClassifier = errors.New("text classifier is not configured")

// classifyJSON runs prompt against tc and decodes the JSON object it
// returns into T. validate rejects structurally wrong payloads.
func classifyJSON[T any](ctx context.Context, tc TextClassifier, prompt, input string, validate func(*T) error) (T, error) {
	var out T
	if tc == nil {
		return out, &ClassifierError{Kind: ClassifierUnavailable, Err: errNoClassifier}
	}

	raw, err := tc.Classify(ctx, prompt, input)
	if err != nil {
		return out, &ClassifierError{Kind: ClassifierUnavailable, Err: err}
	}

	raw = stripCodeFence(raw)
	if raw == "" {
		return out, &ClassifierError{Kind: ClassifierEmpty}
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, &ClassifierError{Kind: ClassifierMalformed, Err: err}
	}
	if validate != nil {
		if err := validate(&out); err != nil {
			return out, &ClassifierError{Kind: ClassifierMalformed, Err: err}
		}
	}
	return out, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
