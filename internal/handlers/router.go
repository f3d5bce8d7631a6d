package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	infoagentweb "github.com/infoagentai/infoagent-web"
)

// NewRouter assembles the full HTTP surface: the JSON API under /api, the server-rendered
// pages, the SSE update stream, and the embedded static assets.
func NewRouter(m Main) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", m.HandleChatCompletion)
		r.Get("/search", m.HandleSearch)
		r.Post("/upload-image", m.HandleUploadImage)
		r.Get("/health", m.HandleHealth)

		r.Route("/chat-sessions", func(r chi.Router) {
			r.Post("/", m.HandleCreateSession)
			r.Get("/", m.HandleListSessions)
			r.Get("/{sessionID}", m.HandleGetSession)
			r.Delete("/{sessionID}", m.HandleDeleteSession)
		})
	})

	r.Get("/", m.HandleHome)
	r.Post("/chats", m.HandleSendMessage)
	r.Post("/chats/new", m.HandleNewChat)
	r.Post("/chats/regenerate", m.HandleRegenerate)
	r.Post("/chats/{chatID}/delete", m.HandleDeleteChat)
	r.Get("/sse/updates", m.ServeSSE)

	r.Handle("/static/*", http.FileServer(http.FS(infoagentweb.StaticFS)))

	return r
}
