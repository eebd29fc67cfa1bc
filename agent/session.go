package agent

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionStore persists chat histories by key.
type SessionStore interface {
	SaveSession(key string, messages any, count int, cleared bool) error
	LoadSession(key string) (json.RawMessage, bool, error)
	DeleteSession(key string) error
}

// Session is a named conversation history.
type Session struct {
	Key       string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionManager caches sessions and writes every change through to the store.
type SessionManager struct {
	store    SessionStore
	sessions map[string]*Session
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewSessionManager returns a manager; a nil store keeps sessions in memory only.
func NewSessionManager(store SessionStore, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		store:    store,
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Open returns the session for key, loading it from the store or creating it.
func (sm *SessionManager) Open(key string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, ok := sm.sessions[key]; ok {
		return session, nil
	}

	now := time.Now()
	session := &Session{Key: key, CreatedAt: now, UpdatedAt: now}
	if sm.store != nil {
		raw, ok, err := sm.store.LoadSession(key)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", key, err)
		}
		if ok {
			if err := json.Unmarshal(raw, &session.Messages); err != nil {
				return nil, fmt.Errorf("decode session %s: %w", key, err)
			}
			sm.logger.Info("session resumed", zap.String("session", key), zap.Int("messages", len(session.Messages)))
		}
	}
	sm.sessions[key] = session
	return session, nil
}

// History returns a copy of the session's messages.
func (sm *SessionManager) History(key string) ([]Message, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[key]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", key)
	}
	return cloneMessages(session.Messages, 0), nil
}

// Update replaces the session's history with a Converse transcript.
func (sm *SessionManager) Update(key string, transcript []Message) error {
	return sm.set(key, cloneMessages(transcript, 0), false)
}

// Clear empties the session's history.
func (sm *SessionManager) Clear(key string) error {
	return sm.set(key, nil, true)
}

func (sm *SessionManager) set(key string, messages []Message, cleared bool) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[key]
	if !ok {
		return fmt.Errorf("session not found: %s", key)
	}
	session.Messages = messages
	session.UpdatedAt = time.Now()
	if sm.store == nil {
		return nil
	}
	if messages == nil {
		messages = []Message{}
	}
	return sm.store.SaveSession(key, messages, len(messages), cleared)
}

// Remove forgets a session and deletes it from the store.
func (sm *SessionManager) Remove(key string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.sessions, key)
	if sm.store != nil {
		if err := sm.store.DeleteSession(key); err != nil {
			return err
		}
	}
	sm.logger.Info("session removed", zap.String("session", key))
	return nil
}
