package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ModelTier selects which configured model handles a completion.
// Answer generation uses the larger model; classification runs on the
// cheaper one.
type ModelTier int

const (
	TierAnswer ModelTier = iota
	TierClassifier
)

type Client struct {
	client          *openai.Client
	answerModel     string
	classifierModel string
}

func NewClient(apiKey, answerModel, classifierModel string) *Client {
	if answerModel == "" {
		answerModel = openai.GPT4o
	}
	if classifierModel == "" {
		classifierModel = openai.GPT4oMini
	}
	return &Client{
		client:          openai.NewClient(apiKey),
		answerModel:     answerModel,
		classifierModel: classifierModel,
	}
}

// Complete issues a single-shot completion with no conversation memory.
// Everything the model needs must be embedded in the prompt.
func (c *Client) Complete(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	model := c.answerModel
	if tier == TierClassifier {
		model = c.classifierModel
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chatCompletion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chatCompletion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
