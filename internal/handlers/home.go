package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/infoagentai/infoagent-web/internal/conversation"
	"github.com/infoagentai/infoagent-web/internal/history"
	"github.com/infoagentai/infoagent-web/internal/models"
)

type chatView struct {
	ID    string
	Title string

	Active bool
}

type messageView struct {
	ID        string
	Index     int
	Role      string
	Model     string
	Content   template.HTML
	Timestamp time.Time

	CanRegenerate bool
}

type homePageData struct {
	Chats         []chatView
	CurrentChatID string
	Messages      []messageView
	Models        []string
	CurrentModel  string
}

// HandleHome renders the home page: the sidebar chat list plus the active chat. A chat_id
// query parameter switches the active chat before rendering.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if chatID := r.URL.Query().Get("chat_id"); chatID != "" {
		if err := m.history.Switch(chatID); err != nil {
			if errors.Is(err, history.ErrChatNotFound) {
				http.Error(w, "Chat not found", http.StatusNotFound)
				return
			}
			m.logger.Error("Failed to switch chat",
				slog.String("chatID", chatID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	current := m.history.Current()

	messages, err := m.messageViews(current.Messages)
	if err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		Chats:         m.chatViews(current.ID),
		CurrentChatID: current.ID,
		Messages:      messages,
		Models:        m.completer.Models(),
		CurrentModel:  m.conversation.Model(),
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSendMessage processes the send-message form. The assistant turn is appended before
// this returns, so the redirect target already shows the full exchange; a gateway failure
// shows the synthetic apology instead.
func (m Main) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.FormValue("message"))
	imageData := r.FormValue("image_data")

	if _, err := m.conversation.Send(r.Context(), text, imageData); err != nil {
		m.renderSendError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleRegenerate discards the assistant turn after the user message named by the index
// form value, or after the most recent user message when no index is given, and requests a
// fresh completion.
func (m Main) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	var err error
	if rawIndex := r.FormValue("index"); rawIndex != "" {
		var index int
		index, err = strconv.Atoi(rawIndex)
		if err != nil {
			http.Error(w, "Invalid message index", http.StatusBadRequest)
			return
		}
		_, err = m.conversation.RegenerateAt(r.Context(), index)
	} else {
		_, err = m.conversation.RegenerateLast(r.Context())
	}

	if err != nil {
		m.renderSendError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleNewChat creates a fresh chat and makes it current.
func (m Main) HandleNewChat(w http.ResponseWriter, r *http.Request) {
	if _, err := m.history.New(); err != nil {
		m.logger.Error("Failed to create new chat", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleDeleteChat removes a chat from the local history. Deleting the last chat leaves a
// freshly created one, so the page always has something to show.
func (m Main) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	if err := m.history.Delete(chatID); err != nil {
		if errors.Is(err, history.ErrChatNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
			return
		}
		m.logger.Error("Failed to delete chat",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (m Main) renderSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		http.Error(w, "Message is required", http.StatusBadRequest)
	case errors.Is(err, conversation.ErrNotUserMessage):
		http.Error(w, "Only responses to user messages can be regenerated", http.StatusBadRequest)
	case errors.Is(err, conversation.ErrBusy):
		http.Error(w, "A response is already being generated", http.StatusConflict)
	default:
		m.logger.Error("Chat request failed", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) chatViews(activeID string) []chatView {
	chats := m.history.Chats()
	views := make([]chatView, 0, len(chats))
	for _, ch := range chats {
		views = append(views, chatView{
			ID:     ch.ID,
			Title:  ch.Title,
			Active: ch.ID == activeID,
		})
	}
	return views
}

// messageViews converts stored messages into their rendered form. System messages never
// reach the page.
func (m Main) messageViews(messages []models.Message) ([]messageView, error) {
	views := make([]messageView, 0, len(messages))
	for i, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		content, err := m.renderContents(msg.Contents)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		views = append(views, messageView{
			ID:            msg.ID,
			Index:         i,
			Role:          string(msg.Role),
			Model:         msg.Model,
			Content:       content,
			Timestamp:     msg.Timestamp,
			CanRegenerate: msg.Role == models.RoleUser,
		})
	}
	return views, nil
}
