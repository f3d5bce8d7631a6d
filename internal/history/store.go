// Package history owns the persisted collection of chats. Every mutation goes through the
// store and is durably flushed before it returns; consumers observe changes through a
// one-way notification subscription.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/infoagentai/infoagent-web/internal/models"
)

// ErrChatNotFound is returned when an operation references a chat id the store does not hold.
var ErrChatNotFound = errors.New("chat not found")

var (
	historyBucket = []byte("history")
	chatsKey      = []byte("chats")
)

// Store is a BoltDB-backed chat collection. The whole chat array is serialized under a single
// key and rewritten wholesale on every mutation; it is loaded eagerly exactly once when the
// store is opened. The store is never without a current chat: opening, deleting, and load
// recovery all guarantee at least one chat exists and is selected.
type Store struct {
	db *bolt.DB

	logger *slog.Logger

	mu        sync.Mutex
	chats     []models.Chat
	currentID string
	subs      []chan struct{}
}

// Open opens the store at path, creating the database file if needed, and loads the persisted
// chats. Corrupt or missing data recovers by discarding it and creating exactly one fresh
// chat. The most recently updated chat becomes current.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With(slog.String("module", "history")),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(historyBucket).Get(chatsKey); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read chats: %w", err)
	}

	if raw != nil {
		if err := json.Unmarshal(raw, &s.chats); err != nil {
			s.logger.Warn("Discarding corrupt chat history", slog.String("err", err.Error()))
			s.chats = nil
		}
	}

	if len(s.chats) == 0 {
		_, err := s.newChatLocked()
		return err
	}

	// The most recently updated chat becomes current on load.
	current := s.chats[0]
	for _, chat := range s.chats[1:] {
		if chat.UpdatedAt.After(current.UpdatedAt) {
			current = chat
		}
	}
	s.currentID = current.ID
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Chats returns a copy of all chats in insertion order, newest first.
func (s *Store) Chats() []models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := make([]models.Chat, len(s.chats))
	copy(chats, s.chats)
	return chats
}

// Current returns the currently selected chat.
func (s *Store) Current() models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, _ := s.findLocked(s.currentID)
	return chat
}

// New creates a fresh chat holding the synthesized welcome message, makes it current, and
// persists the collection.
func (s *Store) New() (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, err := s.newChatLocked()
	if err != nil {
		return models.Chat{}, err
	}
	s.notifyLocked()
	return chat, nil
}

func (s *Store) newChatLocked() (models.Chat, error) {
	now := time.Now()
	welcome := models.WelcomeMessage(models.DefaultModel)
	welcome.ID = uuid.New().String()

	chat := models.Chat{
		ID:        uuid.New().String(),
		Title:     models.DefaultTitle,
		Messages:  []models.Message{welcome},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.chats = append([]models.Chat{chat}, s.chats...)
	s.currentID = chat.ID

	if err := s.flushLocked(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// Switch makes the chat with the given id current.
func (s *Store) Switch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.findLocked(id); !ok {
		return fmt.Errorf("%q: %w", id, ErrChatNotFound)
	}
	s.currentID = id
	s.notifyLocked()
	return nil
}

// Update replaces the message list of the chat with the given id, touches its UpdatedAt
// marker, re-derives the title, and persists the collection. It returns the updated chat.
func (s *Store) Update(id string, messages []models.Message) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.chats {
		if s.chats[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.Chat{}, fmt.Errorf("%q: %w", id, ErrChatNotFound)
	}

	chat := s.chats[idx]
	chat.Messages = messages
	chat.Title = models.DeriveTitle(chat.Title, messages)
	chat.UpdatedAt = time.Now()
	s.chats[idx] = chat

	if err := s.flushLocked(); err != nil {
		return models.Chat{}, err
	}
	s.notifyLocked()
	return chat, nil
}

// Delete removes the chat with the given id. When the current chat is deleted, the first
// remaining chat is selected; when the collection becomes empty, a brand-new chat is
// synthesized. The store never ends up without a current chat.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.chats {
		if s.chats[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("%q: %w", id, ErrChatNotFound)
	}

	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)

	if len(s.chats) == 0 {
		if _, err := s.newChatLocked(); err != nil {
			return err
		}
		s.notifyLocked()
		return nil
	}

	if s.currentID == id {
		s.currentID = s.chats[0].ID
	}

	if err := s.flushLocked(); err != nil {
		return err
	}
	s.notifyLocked()
	return nil
}

// Subscribe returns a channel that receives a signal after every mutation. The channel is
// buffered; a slow consumer coalesces notifications instead of blocking the store.
func (s *Store) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Store) findLocked(id string) (models.Chat, bool) {
	for _, chat := range s.chats {
		if chat.ID == id {
			return chat, true
		}
	}
	return models.Chat{}, false
}

func (s *Store) flushLocked() error {
	v, err := json.Marshal(s.chats)
	if err != nil {
		return fmt.Errorf("failed to marshal chats: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Put(chatsKey, v)
	})
	if err != nil {
		return fmt.Errorf("failed to write chats: %w", err)
	}
	return nil
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
