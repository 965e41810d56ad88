package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"voicebridge/internal/domain"
)

const codeAttempts = 64

// SessionStore keeps session records in process memory, guarded by a single
// RWMutex. Per-session contention is low; the lock never outlives a map
// operation.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

func (s *SessionStore) Create(_ context.Context, cfg domain.SessionConfig) (domain.Session, error) {
	cfg, err := domain.NormalizeConfig(cfg)
	if err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.nextCodeLocked()
	if err != nil {
		return domain.Session{}, err
	}

	name := cfg.Name
	if name == "" {
		name = "Session " + code
	}

	now := s.now()
	session := &domain.Session{
		Code:           code,
		Name:           name,
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: cfg.TargetLanguage,
		TargetVoice:    cfg.TargetVoice,
		Avatar:         cfg.Avatar,
		CreatedAt:      now,
		LastActivity:   now,
	}
	s.sessions[code] = session
	return *session, nil
}

func (s *SessionStore) Get(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *session, nil
}

func (s *SessionStore) SetActive(_ context.Context, code string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[code]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Active = active
	session.LastActivity = s.now()
	return nil
}

func (s *SessionStore) SetPresenter(_ context.Context, code string, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[code]
	if !ok {
		return domain.ErrSessionNotFound
	}
	// First presenter wins; later creators do not reassign the session.
	if session.PresenterID == "" {
		session.PresenterID = connectionID
	}
	session.LastActivity = s.now()
	return nil
}

func (s *SessionStore) Touch(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[code]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.LastActivity = s.now()
	return nil
}

func (s *SessionStore) Remove(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
	return nil
}

func (s *SessionStore) Codes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.sessions))
	for code := range s.sessions {
		codes = append(codes, code)
	}
	return codes, nil
}

// nextCodeLocked draws uniform random 6-digit codes until one is free.
func (s *SessionStore) nextCodeLocked() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := fmt.Sprintf("%06d", rand.IntN(1000000))
		if _, taken := s.sessions[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("session code space exhausted")
}
