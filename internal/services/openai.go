package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/infoagentai/infoagent-web/internal/models"
)

// OpenAI provides a Provider implementation backed by OpenAI's chat completion API.
type OpenAI struct {
	model string

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance with the specified API key and model name.
func NewOpenAI(apiKey, model string, logger *slog.Logger) OpenAI {
	return OpenAI{
		model:  model,
		client: goopenai.NewClient(apiKey),
		logger: logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(messages []models.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if !multimodal(msg.Contents) {
			text := models.FlattenText(msg.Contents)
			if text == "" {
				continue
			}
			msgs = append(msgs, goopenai.ChatCompletionMessage{
				Role:    string(msg.Role),
				Content: text,
			})
			continue
		}

		parts := make([]goopenai.ChatMessagePart, 0, len(msg.Contents))
		for _, ct := range msg.Contents {
			switch ct.Type {
			case models.ContentTypeText:
				if ct.Text != "" {
					parts = append(parts, goopenai.ChatMessagePart{
						Type: goopenai.ChatMessagePartTypeText,
						Text: ct.Text,
					})
				}
			case models.ContentTypeImage:
				parts = append(parts, goopenai.ChatMessagePart{
					Type: goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{
						URL: ct.ImageData,
					},
				})
			}
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:         string(msg.Role),
			MultiContent: parts,
		})
	}
	return msgs
}

func multimodal(contents []models.Content) bool {
	for _, ct := range contents {
		if ct.Type == models.ContentTypeImage {
			return true
		}
	}
	return false
}

// Complete sends the message history to the OpenAI API and returns the single normalized
// response. Upstream error envelopes are mapped onto the gateway failure taxonomy.
func (o OpenAI) Complete(ctx context.Context, messages []models.Message) (Completion, error) {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: openAIMessages(messages),
	}

	o.logger.Debug("Sending request", slog.String("model", o.model))

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return Completion{}, classifyStatus("OpenAI", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return Completion{}, fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Completion{}, fmt.Errorf("OpenAI: %w", ErrEmptyResponse)
	}

	return Completion{
		Message: CompletionMessage{
			Role:    models.RoleAssistant,
			Content: resp.Choices[0].Message.Content,
		},
		Model: o.model,
	}, nil
}
