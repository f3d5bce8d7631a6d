package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/infoagentai/infoagent-web/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubProvider struct {
	completion Completion
	err        error
}

func (s stubProvider) Complete(context.Context, []models.Message) (Completion, error) {
	return s.completion, s.err
}

func TestGatewayComplete(t *testing.T) {
	history := []models.Message{
		models.TextMessage(models.RoleUser, "gpt-4o-mini", "hi there"),
	}

	tests := []struct {
		name     string
		provider stubProvider
		want     Completion
	}{
		{
			name: "Canonical envelope passes through",
			provider: stubProvider{completion: Completion{
				Message: CompletionMessage{Role: models.RoleAssistant, Content: "hi"},
				Model:   "gpt-4o-mini",
			}},
			want: Completion{
				Message: CompletionMessage{Role: models.RoleAssistant, Content: "hi"},
				Model:   "gpt-4o-mini",
			},
		},
		{
			name: "Upstream model name is overridden by the requested identifier",
			provider: stubProvider{completion: Completion{
				Message: CompletionMessage{Role: models.RoleAssistant, Content: "hi"},
				Model:   "deepseek/deepseek-r1-zero:free",
			}},
			want: Completion{
				Message: CompletionMessage{Role: models.RoleAssistant, Content: "hi"},
				Model:   "gpt-4o-mini",
			},
		},
		{
			name: "Missing role is normalized to assistant",
			provider: stubProvider{completion: Completion{
				Message: CompletionMessage{Content: "hi"},
			}},
			want: Completion{
				Message: CompletionMessage{Role: models.RoleAssistant, Content: "hi"},
				Model:   "gpt-4o-mini",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(discardLogger())
			g.Register("gpt-4o-mini", tt.provider)

			got, err := g.Complete(context.Background(), "gpt-4o-mini", history)
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Complete() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGatewayCompleteUnknownModel(t *testing.T) {
	g := NewGateway(discardLogger())
	g.Register("gpt-4o-mini", stubProvider{})

	_, err := g.Complete(context.Background(), "no-such-model", nil)
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Complete() error = %v, want ErrUnknownModel", err)
	}
}

func TestGatewayCompleteProviderError(t *testing.T) {
	g := NewGateway(discardLogger())
	g.Register("gpt-4o-mini", stubProvider{err: ErrRateLimited})

	_, err := g.Complete(context.Background(), "gpt-4o-mini", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Complete() error = %v, want ErrRateLimited", err)
	}
}

func TestGatewayModels(t *testing.T) {
	g := NewGateway(discardLogger())
	g.Register("deepseek-r1", stubProvider{})
	g.Register("gpt-4o-mini", stubProvider{})
	g.Register("llama-4-maverick", stubProvider{})

	want := []string{"deepseek-r1", "gpt-4o-mini", "llama-4-maverick"}
	if got := g.Models(); !reflect.DeepEqual(got, want) {
		t.Errorf("Models() = %v, want %v", got, want)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, ErrAuthentication},
		{403, ErrAuthentication},
		{429, ErrRateLimited},
	}

	for _, tt := range tests {
		if err := classifyStatus("Test", tt.status, "boom"); !errors.Is(err, tt.want) {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, err, tt.want)
		}
	}

	var upstream *UpstreamError
	err := classifyStatus("Test", 500, "boom")
	if !errors.As(err, &upstream) {
		t.Fatalf("classifyStatus(500) = %T, want *UpstreamError", err)
	}
	if upstream.StatusCode != 500 || upstream.Message != "boom" {
		t.Errorf("UpstreamError = %+v", upstream)
	}
}
