package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/infoagentai/infoagent-web/internal/conversation"
	"github.com/infoagentai/infoagent-web/internal/handlers"
	"github.com/infoagentai/infoagent-web/internal/history"
	"github.com/infoagentai/infoagent-web/internal/services"
	"github.com/infoagentai/infoagent-web/internal/store"
)

// logNotifier surfaces transient conversation notices through the structured log.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Notify(title, detail string) {
	n.logger.Warn("Notification", slog.String("title", title), slog.String("detail", detail))
}

func configFilePath() string {
	if path := os.Getenv("INFOAGENT_CONFIG"); path != "" {
		return path
	}

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(cfgDir, "infoagent", "config.yaml")
}

func main() {
	// A missing .env file is fine, the environment may already be populated
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configFilePath())
	if err != nil {
		log.Fatal(err)
	}

	historyStore, err := history.Open(cfg.HistoryPath, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer historyStore.Close()

	sessionStore, err := store.NewSessionStore(cfg.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}
	defer sessionStore.Close()

	gateway := services.NewGateway(logger)
	for _, pc := range cfg.Providers {
		provider, err := pc.build(logger)
		if err != nil {
			// An unbuildable provider is reported by the health endpoint, not a crash
			logger.Warn("Skipping provider",
				slog.String("model", pc.modelID()),
				slog.String("err", err.Error()))
			continue
		}
		gateway.Register(pc.modelID(), provider)
	}

	controller := conversation.New(
		historyStore,
		gateway,
		logNotifier{logger: logger},
		nil,
		cfg.DefaultModel,
		logger,
	)

	m, err := handlers.NewMain(handlers.Deps{
		Conversation: controller,
		History:      historyStore,
		Completer:    gateway,
		Searcher:     services.NewDuckDuckGo(logger),
		Sessions:     sessionStore,
		MissingKeys: func() []string {
			var missing []string
			if os.Getenv("OPENAI_API_KEY") == "" {
				missing = append(missing, "OPENAI_API_KEY")
			}
			if os.Getenv("OPENROUTER_API_KEY") == "" {
				missing = append(missing, "OPENROUTER_API_KEY")
			}
			if cfg.DatabasePath == "" {
				missing = append(missing, "DATABASE_PATH")
			}
			return missing
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	go m.WatchUpdates(watchCtx)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		watchCancel()
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
