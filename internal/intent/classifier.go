package intent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/vantagedesk/mira/internal/ai"
)

// Completer is the single-shot completion dependency of the classifier.
type Completer interface {
	Complete(ctx context.Context, prompt string, tier ai.ModelTier) (string, error)
}

// Classifier maps a free-text question to a Category using a
// closed-vocabulary model call. It is best-effort: no retries, no
// confidence threshold. Any failure degrades to CategoryNone so the
// conversation continues without a ticket prompt.
type Classifier struct {
	completer Completer
}

func NewClassifier(c Completer) *Classifier {
	return &Classifier{completer: c}
}

// Classify returns the category for a question, or CategoryNone. It never
// returns an error — model failures and out-of-vocabulary labels both fail
// open.
func (c *Classifier) Classify(ctx context.Context, question string) Category {
	result, err := c.completer.Complete(ctx, classifierPrompt(question), ai.TierClassifier)
	if err != nil {
		log.Printf("classifier: completion failed, treating as none: %v", err)
		return CategoryNone
	}
	return ParseCategory(result)
}

func classifierPrompt(question string) string {
	names := make([]string, len(Categories))
	for i, cat := range Categories {
		names[i] = string(cat)
	}

	return fmt.Sprintf(`You are an IT help-desk intent classifier.
Classify the user's question into exactly one of these categories:
%s

Reply with the category name only, lower case, no punctuation.
If the question does not fit any category, reply with exactly: none

QUESTION:
%s`, strings.Join(names, "\n"), question)
}
