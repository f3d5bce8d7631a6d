package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/infoagentai/infoagent-web/internal/models"
)

// Ollama provides a Provider implementation for models served by a local Ollama instance.
// Image contents are flattened away since the configured models are text-only.
type Ollama struct {
	host  string
	model string

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The
// host parameter should be a valid URL pointing to an Ollama server; an invalid URL is a
// configuration error and panics.
func NewOllama(host, model string, logger *slog.Logger) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:   host,
		model:  model,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}
}

// Complete sends the message history to the Ollama server and returns the single normalized
// response. Streaming is disabled; the server answers with one final message.
func (o Ollama) Complete(ctx context.Context, messages []models.Message) (Completion, error) {
	msgs := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		text := models.FlattenText(msg.Contents)
		if text == "" {
			continue
		}
		msgs = append(msgs, api.Message{
			Role:    string(msg.Role),
			Content: text,
		})
	}

	stream := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
	}

	o.logger.Debug("Sending request", slog.String("model", o.model))

	var content string
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		content = res.Message.Content
		return nil
	}); err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return Completion{}, classifyStatus("Ollama", statusErr.StatusCode, statusErr.ErrorMessage)
		}
		return Completion{}, fmt.Errorf("error sending request: %w", err)
	}

	if content == "" {
		return Completion{}, fmt.Errorf("Ollama: %w", ErrEmptyResponse)
	}

	return Completion{
		Message: CompletionMessage{
			Role:    models.RoleAssistant,
			Content: content,
		},
		Model: o.model,
	}, nil
}
