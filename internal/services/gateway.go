package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/infoagentai/infoagent-web/internal/models"
)

// Completion is the canonical envelope every upstream response is normalized into.
type Completion struct {
	Message CompletionMessage `json:"message"`
	Model   string            `json:"model"`
}

// CompletionMessage is the normalized assistant turn inside a Completion.
type CompletionMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Provider produces a single completion for a message history. Each adapter translates the
// uniform request shape into its own wire format and returns the canonical envelope directly;
// no shape probing happens after this boundary.
type Provider interface {
	Complete(ctx context.Context, messages []models.Message) (Completion, error)
}

// Gateway routes a requested model identifier to one of several upstream completion
// providers. The routing table is fixed at construction time.
type Gateway struct {
	providers map[string]Provider

	logger *slog.Logger
}

// NewGateway creates a Gateway with an empty routing table.
func NewGateway(logger *slog.Logger) *Gateway {
	return &Gateway{
		providers: make(map[string]Provider),
		logger:    logger.With(slog.String("module", "gateway")),
	}
}

// Register binds a model identifier to a provider. Registering the same identifier twice
// replaces the earlier binding.
func (g *Gateway) Register(modelID string, provider Provider) {
	g.providers[modelID] = provider
}

// Models returns the registered model identifiers in sorted order.
func (g *Gateway) Models() []string {
	ids := make([]string, 0, len(g.providers))
	for id := range g.providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Complete routes the request to the provider registered for modelID and normalizes the
// result: whatever model name the upstream reports, the envelope carries the requested
// identifier.
func (g *Gateway) Complete(ctx context.Context, modelID string, messages []models.Message) (Completion, error) {
	provider, ok := g.providers[modelID]
	if !ok {
		return Completion{}, fmt.Errorf("%q: %w", modelID, ErrUnknownModel)
	}

	g.logger.Debug("Routing completion request",
		slog.String("model", modelID),
		slog.Int("messages", len(messages)),
	)

	completion, err := provider.Complete(ctx, messages)
	if err != nil {
		return Completion{}, err
	}

	completion.Model = modelID
	completion.Message.Role = models.RoleAssistant
	return completion, nil
}
