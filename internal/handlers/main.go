package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"time"

	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	infoagentweb "github.com/infoagentai/infoagent-web"
	"github.com/infoagentai/infoagent-web/internal/models"
	"github.com/infoagentai/infoagent-web/internal/services"
	"github.com/infoagentai/infoagent-web/internal/store"
)

// Conversation drives the active chat: user turns in, assistant turns out.
type Conversation interface {
	Model() string
	Send(ctx context.Context, text, imageData string) (models.Message, error)
	RegenerateAt(ctx context.Context, index int) (models.Message, error)
	RegenerateLast(ctx context.Context) (models.Message, error)
}

// History exposes the local chat list the web pages render from.
type History interface {
	Chats() []models.Chat
	Current() models.Chat
	New() (models.Chat, error)
	Switch(id string) error
	Delete(id string) error
	Subscribe() <-chan struct{}
}

// Completer routes a message history to an upstream provider by model identifier.
type Completer interface {
	Complete(ctx context.Context, modelID string, messages []models.Message) (services.Completion, error)
	Models() []string
}

// Searcher answers free-text web queries.
type Searcher interface {
	Search(ctx context.Context, query string) []services.SearchResult
}

// Sessions is the relational session/message store behind the chat-sessions API.
type Sessions interface {
	CreateSession(title string) (*store.Session, error)
	Sessions() ([]store.Session, error)
	Session(id int64) (*store.Session, []store.Message, error)
	DeleteSession(id int64) (bool, error)
	AddMessage(sessionID int64, role, content, model string) (*store.Message, error)
	TouchSession(id int64) error
	Ping() error
}

// Deps bundles everything Main serves from. MissingKeys reports configuration keys the
// health endpoint should flag; a nil func means nothing is required.
type Deps struct {
	Conversation Conversation
	History      History
	Completer    Completer
	Searcher     Searcher
	Sessions     Sessions

	MissingKeys func() []string

	Logger *slog.Logger
}

// Main handles the core functionality of the chat application, managing server-sent events,
// HTML templates, and the JSON API surface.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	conversation Conversation
	history      History
	completer    Completer
	searcher     Searcher
	sessions     Sessions
	missingKeys  func() []string

	logger *slog.Logger
}

const (
	chatsSSETopic    = "chats"
	messagesSSETopic = "messages"
)

const errLoggerKey = "err"

// NewMain creates a new Main instance from deps. It parses the required HTML templates from
// the embedded filesystem and initializes the SSE server so every client is subscribed to
// chat-list and message updates.
func NewMain(deps Deps) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		infoagentweb.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, chatsSSETopic, messagesSSETopic},
				}, true
			},
		},
		templates: tmpl,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("monokai"),
				),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
		conversation: deps.Conversation,
		history:      deps.History,
		completer:    deps.Completer,
		searcher:     deps.Searcher,
		sessions:     deps.Sessions,
		missingKeys:  deps.MissingKeys,
		logger:       logger.With(slog.String("module", "handlers")),
	}, nil
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
