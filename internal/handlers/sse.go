package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmaxmax/go-sse"
)

// SSE event types for real-time updates.
var (
	chatsSSEType    = sse.Type("chats")
	messagesSSEType = sse.Type("messages")
)

// ServeSSE streams chat-list and message updates to the browser.
func (m Main) ServeSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// WatchUpdates publishes rendered chat-list and message fragments whenever the history
// store mutates. It blocks until ctx is done and is meant to run in its own goroutine.
func (m Main) WatchUpdates(ctx context.Context) {
	updates := m.history.Subscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			m.publishUpdates()
		}
	}
}

func (m Main) publishUpdates() {
	current := m.history.Current()

	divs, err := m.chatDivs(current.ID)
	if err != nil {
		m.logger.Error("Failed to render chat list", slog.String(errLoggerKey, err.Error()))
	} else {
		msg := sse.Message{Type: chatsSSEType}
		msg.AppendData(divs)
		if err := m.sseSrv.Publish(&msg, chatsSSETopic); err != nil {
			m.logger.Error("Failed to publish chats", slog.String(errLoggerKey, err.Error()))
		}
	}

	body, err := m.messageDivs()
	if err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		return
	}
	msg := sse.Message{Type: messagesSSEType}
	msg.AppendData(body)
	if err := m.sseSrv.Publish(&msg, messagesSSETopic); err != nil {
		m.logger.Error("Failed to publish messages", slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) chatDivs(activeID string) (string, error) {
	var sb strings.Builder
	for _, view := range m.chatViews(activeID) {
		if err := m.templates.ExecuteTemplate(&sb, "chat_title", view); err != nil {
			return "", fmt.Errorf("failed to execute chat_title template: %w", err)
		}
	}
	return sb.String(), nil
}

func (m Main) messageDivs() (string, error) {
	views, err := m.messageViews(m.history.Current().Messages)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, view := range views {
		if err := m.templates.ExecuteTemplate(&sb, "chat_message", view); err != nil {
			return "", fmt.Errorf("failed to execute chat_message template: %w", err)
		}
	}
	return sb.String(), nil
}
