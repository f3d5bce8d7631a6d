// Package conversation orchestrates the chat loop: sending user turns to the completion
// gateway, appending normalized responses, and regenerating superseded assistant turns.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/infoagentai/infoagent-web/internal/models"
	"github.com/infoagentai/infoagent-web/internal/services"
)

// Gateway is the completion provider router the controller sends message histories to.
type Gateway interface {
	Complete(ctx context.Context, modelID string, messages []models.Message) (services.Completion, error)
}

// Store is the slice of the history store the controller mutates.
type Store interface {
	Current() models.Chat
	Update(id string, messages []models.Message) (models.Chat, error)
}

// Notifier surfaces transient user-visible notices. Implementations must not block.
type Notifier interface {
	Notify(title, detail string)
}

// NopNotifier discards all notices.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string, string) {}

var (
	// ErrBusy is returned when a send or regeneration is issued for a chat that already
	// has a request in flight. Overlapping sends are rejected, not queued.
	ErrBusy = errors.New("a request is already in flight for this chat")
	// ErrNotUserMessage is returned when a regeneration index does not refer to a
	// user-role message. The conversation state is left untouched.
	ErrNotUserMessage = errors.New("regeneration requires a user message")
	// ErrEmptyInput is returned when a send carries neither text nor an image.
	ErrEmptyInput = errors.New("message text or image is required")
)

const apologyText = "I apologize, but I encountered an error processing your request. " +
	"Please try again later."

// Controller drives the active chat. It appends user turns optimistically, invokes the
// gateway with the full prior history prefixed by the fixed system message, and appends
// exactly one response per request. A gateway failure never leaves the conversation in a
// loading state: a synthetic apologetic assistant message is appended instead and the
// failure is surfaced through the notifier.
type Controller struct {
	store    Store
	gateway  Gateway
	notifier Notifier
	speech   Speech

	model string

	logger *slog.Logger

	mu      sync.Mutex
	sending map[string]bool
}

// New creates a Controller using modelID for outbound completion requests.
func New(store Store, gateway Gateway, notifier Notifier, speech Speech, modelID string, logger *slog.Logger) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if speech == nil {
		speech = UnsupportedSpeech{}
	}
	return &Controller{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		speech:   speech,
		model:    modelID,
		logger:   logger.With(slog.String("module", "conversation")),
		sending:  make(map[string]bool),
	}
}

// Model returns the model identifier used for outbound requests.
func (c *Controller) Model() string {
	return c.model
}

// Send appends a user message built from text and an optional image to the active chat,
// requests a completion, and appends the response. It returns the assistant message that
// ended up in the chat, which on gateway failure is the synthetic apology.
func (c *Controller) Send(ctx context.Context, text, imageData string) (models.Message, error) {
	if text == "" && imageData == "" {
		return models.Message{}, ErrEmptyInput
	}

	chat := c.store.Current()
	if err := c.begin(chat.ID); err != nil {
		return models.Message{}, err
	}
	defer c.end(chat.ID)

	userMsg := models.TextMessage(models.RoleUser, c.model, text)
	userMsg.ID = uuid.New().String()
	if imageData != "" {
		userMsg.Contents = append(userMsg.Contents, models.Content{
			Type:      models.ContentTypeImage,
			ImageData: imageData,
		})
	}

	messages := append(chat.Messages, userMsg)
	if _, err := c.store.Update(chat.ID, messages); err != nil {
		return models.Message{}, fmt.Errorf("failed to append user message: %w", err)
	}

	return c.complete(ctx, chat.ID, messages)
}

// RegenerateAt discards the assistant response that followed the user message at index, along
// with every later turn, and requests a fresh completion for the truncated history. An index
// that does not refer to a user-role message is rejected without mutating state.
func (c *Controller) RegenerateAt(ctx context.Context, index int) (models.Message, error) {
	chat := c.store.Current()

	if index < 0 || index >= len(chat.Messages) {
		return models.Message{}, fmt.Errorf("index %d out of range: %w", index, ErrNotUserMessage)
	}
	if chat.Messages[index].Role != models.RoleUser {
		return models.Message{}, fmt.Errorf("index %d: %w", index, ErrNotUserMessage)
	}

	if err := c.begin(chat.ID); err != nil {
		return models.Message{}, err
	}
	defer c.end(chat.ID)

	truncated := append([]models.Message{}, chat.Messages[:index+1]...)
	if _, err := c.store.Update(chat.ID, truncated); err != nil {
		return models.Message{}, fmt.Errorf("failed to truncate chat: %w", err)
	}

	return c.complete(ctx, chat.ID, truncated)
}

// RegenerateLast regenerates the response to the most recent user message, located by a
// linear backward scan. This backs the regenerate affordance shown on assistant bubbles.
func (c *Controller) RegenerateLast(ctx context.Context) (models.Message, error) {
	chat := c.store.Current()

	for i := len(chat.Messages) - 1; i >= 0; i-- {
		if chat.Messages[i].Role == models.RoleUser {
			return c.RegenerateAt(ctx, i)
		}
	}
	return models.Message{}, ErrNotUserMessage
}

// Speak reads text aloud through the injected speech capability. Unsupported platforms
// surface a notice instead of failing.
func (c *Controller) Speak(ctx context.Context, text string) {
	if err := c.speech.Speak(ctx, text); err != nil {
		if errors.Is(err, ErrSpeechUnsupported) {
			c.notifier.Notify("Speech unavailable", "Text-to-speech is not supported here")
			return
		}
		c.logger.Error("Speech failed", slog.String("err", err.Error()))
	}
}

// complete requests one completion for messages, prefixed by the fixed system message, and
// appends the outcome to the chat. The returned message is what the user will see.
func (c *Controller) complete(ctx context.Context, chatID string, messages []models.Message) (models.Message, error) {
	outbound := append([]models.Message{models.SystemMessage()}, messages...)

	completion, err := c.gateway.Complete(ctx, c.model, outbound)
	if err != nil {
		c.logger.Error("Completion failed",
			slog.String("chatID", chatID),
			slog.String("err", err.Error()),
		)
		c.notifier.Notify("Error", err.Error())

		apology := models.TextMessage(models.RoleAssistant, c.model, apologyText)
		apology.ID = uuid.New().String()
		if _, err := c.store.Update(chatID, append(messages, apology)); err != nil {
			return models.Message{}, fmt.Errorf("failed to append error message: %w", err)
		}
		return apology, nil
	}

	reply := models.TextMessage(models.RoleAssistant, completion.Model, completion.Message.Content)
	reply.ID = uuid.New().String()
	if _, err := c.store.Update(chatID, append(messages, reply)); err != nil {
		return models.Message{}, fmt.Errorf("failed to append response: %w", err)
	}
	return reply, nil
}

func (c *Controller) begin(chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sending[chatID] {
		return ErrBusy
	}
	c.sending[chatID] = true
	return nil
}

func (c *Controller) end(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sending, chatID)
}
