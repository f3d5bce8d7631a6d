package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/infoagentai/infoagent-web/internal/models"
)

// OpenRouter provides a Provider implementation for models served through OpenRouter's
// OpenAI-compatible completion API, including multimodal models that accept image inputs.
type OpenRouter struct {
	apiKey string
	model  string

	endpoint string
	client   *http.Client

	logger *slog.Logger
}

type openRouterChatRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type openRouterMessage struct {
	Role string `json:"role"`
	// Content is either a plain string or a slice of content parts for multimodal turns.
	Content any `json:"content"`
}

type openRouterTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openRouterImagePart struct {
	Type     string          `json:"type"`
	ImageURL openRouterImage `json:"image_url"`
}

type openRouterImage struct {
	URL string `json:"url"`
}

type openRouterResponse struct {
	Choices []openRouterChoice `json:"choices"`
}

type openRouterChoice struct {
	Message openRouterResponseMessage `json:"message"`
}

type openRouterResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterErrorEnvelope struct {
	Error openRouterErrorBody `json:"error"`
}

type openRouterErrorBody struct {
	Message string `json:"message"`
}

const openRouterAPIEndpoint = "https://openrouter.ai/api/v1"

// NewOpenRouter creates a new OpenRouter instance for the given upstream model name, e.g.
// "deepseek/deepseek-r1-zero:free" or "meta-llama/llama-4-maverick:free".
func NewOpenRouter(apiKey, model string, logger *slog.Logger) OpenRouter {
	return OpenRouter{
		apiKey:   apiKey,
		model:    model,
		endpoint: openRouterAPIEndpoint,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "openrouter")),
	}
}

func openRouterMessages(messages []models.Message) []openRouterMessage {
	msgs := make([]openRouterMessage, 0, len(messages))
	for _, msg := range messages {
		if !multimodal(msg.Contents) {
			text := models.FlattenText(msg.Contents)
			if text == "" {
				continue
			}
			msgs = append(msgs, openRouterMessage{
				Role:    string(msg.Role),
				Content: text,
			})
			continue
		}

		parts := make([]any, 0, len(msg.Contents))
		for _, ct := range msg.Contents {
			switch ct.Type {
			case models.ContentTypeText:
				if ct.Text != "" {
					parts = append(parts, openRouterTextPart{Type: "text", Text: ct.Text})
				}
			case models.ContentTypeImage:
				parts = append(parts, openRouterImagePart{
					Type:     "image_url",
					ImageURL: openRouterImage{URL: ct.ImageData},
				})
			}
		}
		msgs = append(msgs, openRouterMessage{
			Role:    string(msg.Role),
			Content: parts,
		})
	}
	return msgs
}

// Complete sends the message history to the OpenRouter API and returns the single normalized
// response. Non-2xx statuses are mapped onto the gateway failure taxonomy using the vendor's
// own error envelope when one is present. A success payload that does not decode into the
// expected shape degrades gracefully: its raw body becomes the assistant content.
func (o OpenRouter) Complete(ctx context.Context, messages []models.Message) (Completion, error) {
	reqBody := openRouterChatRequest{
		Model:    o.model,
		Messages: openRouterMessages(messages),
		Stream:   false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("error marshaling request: %w", err)
	}

	o.logger.Debug("Sending request",
		slog.String("model", o.model),
		slog.Int("bodyBytes", len(jsonBody)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.endpoint+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return Completion{}, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/infoagentai/infoagent-web")
	req.Header.Set("X-Title", "InfoAgent")

	resp, err := o.client.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope openRouterErrorEnvelope
		message := resp.Status
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
		return Completion{}, classifyStatus("OpenRouter", resp.StatusCode, message)
	}

	var res openRouterResponse
	if err := json.Unmarshal(body, &res); err != nil {
		o.logger.Warn("Unrecognized response shape, passing raw payload through",
			slog.String("body", string(body)),
		)
		return Completion{
			Message: CompletionMessage{
				Role:    models.RoleAssistant,
				Content: string(body),
			},
			Model: o.model,
		}, nil
	}

	if len(res.Choices) == 0 || res.Choices[0].Message.Content == "" {
		return Completion{}, fmt.Errorf("OpenRouter: %w", ErrEmptyResponse)
	}

	return Completion{
		Message: CompletionMessage{
			Role:    models.RoleAssistant,
			Content: res.Choices[0].Message.Content,
		},
		Model: o.model,
	}, nil
}
