package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/infoagentai/infoagent-web/internal/models"
	"github.com/infoagentai/infoagent-web/internal/services"
	"github.com/infoagentai/infoagent-web/internal/store"
)

type apiContent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ImageData string `json:"imageData,omitempty"`
}

// apiMessage accepts content as either a bare string or an ordered sequence of typed parts,
// so plain-text clients stay simple while multimodal turns remain expressible.
type apiMessage struct {
	Role     string
	Contents []apiContent
}

func (m *apiMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role

	if len(raw.Content) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Contents = []apiContent{{Type: "text", Text: text}}
		return nil
	}

	var parts []apiContent
	if err := json.Unmarshal(raw.Content, &parts); err != nil {
		return fmt.Errorf("content must be a string or an array of parts: %w", err)
	}
	m.Contents = parts
	return nil
}

type chatCompletionRequest struct {
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	SessionID *int64       `json:"sessionId,omitempty"`
}

type errorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func (m Main) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

func (r chatCompletionRequest) validate(knownModels []string) []string {
	var errs []string

	if r.Model == "" {
		errs = append(errs, "model is required")
	} else {
		known := false
		for _, id := range knownModels {
			if id == r.Model {
				known = true
				break
			}
		}
		if !known {
			errs = append(errs, fmt.Sprintf("model %q is not supported", r.Model))
		}
	}

	if len(r.Messages) == 0 {
		errs = append(errs, "messages must not be empty")
	}
	for i, msg := range r.Messages {
		switch models.Role(msg.Role) {
		case models.RoleUser, models.RoleAssistant, models.RoleSystem:
		default:
			errs = append(errs, fmt.Sprintf("messages[%d]: unknown role %q", i, msg.Role))
		}
		if len(msg.Contents) == 0 {
			errs = append(errs, fmt.Sprintf("messages[%d]: content is required", i))
		}
	}

	return errs
}

func (r chatCompletionRequest) toModelMessages() []models.Message {
	msgs := make([]models.Message, 0, len(r.Messages))
	for _, msg := range r.Messages {
		contents := make([]models.Content, 0, len(msg.Contents))
		for _, part := range msg.Contents {
			switch part.Type {
			case "image":
				contents = append(contents, models.Content{
					Type:      models.ContentTypeImage,
					ImageData: part.ImageData,
				})
			default:
				contents = append(contents, models.Content{
					Type: models.ContentTypeText,
					Text: part.Text,
				})
			}
		}
		msgs = append(msgs, models.Message{
			Role:     models.Role(msg.Role),
			Contents: contents,
			Model:    r.Model,
		})
	}
	return msgs
}

// HandleChatCompletion processes POST /api/chat. The request carries the full message
// history; the response is the canonical completion envelope. When a sessionId is present,
// the triggering user message and the produced assistant message are recorded against that
// session, but a store failure there never fails the chat response.
func (m Main) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: "Invalid request body",
			Errors:  []string{err.Error()},
		})
		return
	}

	if errs := req.validate(m.completer.Models()); len(errs) > 0 {
		m.logger.Error("Chat request validation failed", slog.String("errors", strings.Join(errs, "; ")))
		m.writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: "Invalid chat request",
			Errors:  errs,
		})
		return
	}

	messages := req.toModelMessages()

	completion, err := m.completer.Complete(r.Context(), req.Model, messages)
	if err != nil {
		m.logger.Error("Completion failed",
			slog.String("model", req.Model),
			slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: err.Error()})
		return
	}

	if req.SessionID != nil {
		m.logSessionMessages(*req.SessionID, messages, completion)
	}

	m.writeJSON(w, http.StatusOK, completion)
}

// logSessionMessages records the last user message and the assistant response against a
// session. Failures are logged and swallowed: audit persistence must never block the reply.
func (m Main) logSessionMessages(sessionID int64, messages []models.Message, completion services.Completion) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != models.RoleUser {
			continue
		}
		content := models.FlattenText(messages[i].Contents)
		if _, err := m.sessions.AddMessage(sessionID, string(models.RoleUser), content, completion.Model); err != nil {
			m.logger.Error("Failed to log user message",
				slog.Int64("sessionID", sessionID),
				slog.String(errLoggerKey, err.Error()))
		}
		break
	}

	if _, err := m.sessions.AddMessage(
		sessionID,
		string(completion.Message.Role),
		completion.Message.Content,
		completion.Model,
	); err != nil {
		m.logger.Error("Failed to log assistant message",
			slog.Int64("sessionID", sessionID),
			slog.String(errLoggerKey, err.Error()))
	}

	if err := m.sessions.TouchSession(sessionID); err != nil {
		m.logger.Error("Failed to touch session",
			slog.Int64("sessionID", sessionID),
			slog.String(errLoggerKey, err.Error()))
	}
}

type searchResponse struct {
	Results []services.SearchResult `json:"results"`
}

// HandleSearch processes GET /api/search. The query parameter is required; the result list
// is never empty because the searcher degrades to a synthetic link on total failure.
func (m Main) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		m.writeJSON(w, http.StatusBadRequest, struct {
			Message string                  `json:"message"`
			Results []services.SearchResult `json:"results"`
		}{
			Message: "query parameter is required",
			Results: []services.SearchResult{},
		})
		return
	}

	m.writeJSON(w, http.StatusOK, searchResponse{Results: m.searcher.Search(r.Context(), query)})
}

type uploadImageRequest struct {
	ImageData string `json:"imageData"`
}

type uploadImageResponse struct {
	Success   bool   `json:"success"`
	ImageData string `json:"imageData"`
}

// HandleUploadImage processes POST /api/upload-image. The client embeds the image as a
// base64 data URL; the server echoes it back so the client can attach it to a later turn.
func (m Main) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	var req uploadImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: "Invalid request body",
			Errors:  []string{err.Error()},
		})
		return
	}
	if req.ImageData == "" {
		m.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "imageData is required"})
		return
	}

	m.writeJSON(w, http.StatusOK, uploadImageResponse{Success: true, ImageData: req.ImageData})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

// HandleCreateSession processes POST /api/chat-sessions.
func (m Main) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			m.writeJSON(w, http.StatusBadRequest, errorResponse{
				Message: "Invalid request body",
				Errors:  []string{err.Error()},
			})
			return
		}
	}

	session, err := m.sessions.CreateSession(req.Title)
	if err != nil {
		m.logger.Error("Failed to create session", slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to create session"})
		return
	}

	m.writeJSON(w, http.StatusCreated, session)
}

// HandleListSessions processes GET /api/chat-sessions, most recently updated last.
func (m Main) HandleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions, err := m.sessions.Sessions()
	if err != nil {
		m.logger.Error("Failed to list sessions", slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}

	m.writeJSON(w, http.StatusOK, sessions)
}

func sessionIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
}

type sessionDetailResponse struct {
	*store.Session
	Messages []store.Message `json:"messages"`
}

// HandleGetSession processes GET /api/chat-sessions/{id}, returning the session together
// with its messages ordered by timestamp.
func (m Main) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		m.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid session id"})
		return
	}

	session, messages, err := m.sessions.Session(id)
	if err != nil {
		m.logger.Error("Failed to get session",
			slog.Int64("sessionID", id),
			slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to get session"})
		return
	}
	if session == nil {
		m.writeJSON(w, http.StatusNotFound, errorResponse{Message: "Session not found"})
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	m.writeJSON(w, http.StatusOK, sessionDetailResponse{Session: session, Messages: messages})
}

// HandleDeleteSession processes DELETE /api/chat-sessions/{id}. Session messages are
// removed before the session row itself.
func (m Main) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		m.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid session id"})
		return
	}

	deleted, err := m.sessions.DeleteSession(id)
	if err != nil {
		m.logger.Error("Failed to delete session",
			slog.Int64("sessionID", id),
			slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to delete session"})
		return
	}
	if !deleted {
		m.writeJSON(w, http.StatusNotFound, errorResponse{Message: "Session not found"})
		return
	}

	m.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type healthResponse struct {
	Status  string   `json:"status"`
	Missing []string `json:"missing,omitempty"`
}

// HandleHealth processes GET /api/health. The check fails, naming the missing keys, when
// any required configuration is absent or the session store is unreachable.
func (m Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	var missing []string
	if m.missingKeys != nil {
		missing = m.missingKeys()
	}
	if len(missing) > 0 {
		m.writeJSON(w, http.StatusInternalServerError, healthResponse{
			Status:  fmt.Sprintf("missing configuration: %s", strings.Join(missing, ", ")),
			Missing: missing,
		})
		return
	}

	if m.sessions != nil {
		if err := m.sessions.Ping(); err != nil {
			m.logger.Error("Health check failed", slog.String(errLoggerKey, err.Error()))
			m.writeJSON(w, http.StatusInternalServerError, healthResponse{Status: "database unreachable"})
			return
		}
	}

	m.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
