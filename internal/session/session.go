// Package session holds the process-wide authentication record. The HTTP
// client reads the token through an explicit *State reference.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"moneyguard/internal/core"
	"moneyguard/internal/log"
	"moneyguard/internal/storage"
)

// StorageKey is the durable key of the auth record.
const StorageKey = "authData"

// AuthRecord is the payload of a successful sign-in.
type AuthRecord struct {
	User  core.User `json:"user"`
	Token string    `json:"token"`
}

type State struct {
	mu     sync.RWMutex
	record *AuthRecord
	store  storage.Store
	logger *log.Logger
}

func New(store storage.Store, logger *log.Logger) *State {
	if logger == nil {
		logger = log.Discard()
	}
	return &State{store: store, logger: logger.WithComponent(log.ComponentSession)}
}

// Hydrate loads the persisted record. A corrupt record is discarded.
func (s *State) Hydrate(ctx context.Context) error {
	raw, ok, err := s.store.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return nil
	}

	var rec AuthRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Token == "" {
		s.logger.WarnContext(ctx, "Discarding unreadable session record", log.FieldError, err)
		return s.store.Delete(ctx, StorageKey)
	}

	s.mu.Lock()
	s.record = &rec
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "Session restored", "email", rec.User.Email)
	return nil
}

// Token returns the bearer token, empty when signed out.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return ""
	}
	return s.record.Token
}

func (s *State) User() (core.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return core.User{}, false
	}
	return s.record.User, true
}

func (s *State) IsAuthenticated() bool {
	return s.Token() != ""
}

// Save replaces the current record in memory and in durable storage.
func (s *State) Save(ctx context.Context, rec AuthRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.store.Set(ctx, StorageKey, string(raw)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.record = &rec
	s.mu.Unlock()
	return nil
}

// Clear forgets the record. Memory is cleared even when storage fails.
func (s *State) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.record = nil
	s.mu.Unlock()

	if err := s.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
