package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/valkey-io/valkey-go"

	"voicebridge/internal/domain"
)

const (
	codeAttempts = 64
	sessionKey   = "vb:session:"
	indexKey     = "vb:sessions"
)

// record is the stored shape; it keeps the fields the JSON API hides.
type record struct {
	domain.Session
	LastActivity time.Time `json:"lastActivity"`
	PresenterID  string    `json:"presenterId"`
}

// SessionStore keeps session records in valkey so the relay can run behind a
// load balancer without rewriting the controller. Session mutations come from
// the single presenter control path, so read-modify-write is sufficient here.
type SessionStore struct {
	client valkey.Client
	now    func() time.Time
}

func New(address string) (*SessionStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{address}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", address, err)
	}
	return &SessionStore{client: client, now: time.Now}, nil
}

func (s *SessionStore) Close() {
	s.client.Close()
}

func (s *SessionStore) Create(ctx context.Context, cfg domain.SessionConfig) (domain.Session, error) {
	cfg, err := domain.NormalizeConfig(cfg)
	if err != nil {
		return domain.Session{}, err
	}

	for i := 0; i < codeAttempts; i++ {
		code := fmt.Sprintf("%06d", rand.IntN(1000000))

		name := cfg.Name
		if name == "" {
			name = "Session " + code
		}
		now := s.now()
		rec := record{
			Session: domain.Session{
				Code:           code,
				Name:           name,
				SourceLanguage: cfg.SourceLanguage,
				TargetLanguage: cfg.TargetLanguage,
				TargetVoice:    cfg.TargetVoice,
				Avatar:         cfg.Avatar,
				CreatedAt:      now,
			},
			LastActivity: now,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return domain.Session{}, err
		}

		// SET NX claims the code; a nil reply means collision, draw again.
		err = s.client.Do(ctx, s.client.B().Set().Key(sessionKey+code).Value(string(data)).Nx().Build()).Error()
		if valkey.IsValkeyNil(err) {
			continue
		}
		if err != nil {
			return domain.Session{}, fmt.Errorf("failed to store session: %w", err)
		}
		if err := s.client.Do(ctx, s.client.B().Sadd().Key(indexKey).Member(code).Build()).Error(); err != nil {
			return domain.Session{}, fmt.Errorf("failed to index session: %w", err)
		}
		return rec.export(), nil
	}
	return domain.Session{}, fmt.Errorf("session code space exhausted")
}

func (s *SessionStore) Get(ctx context.Context, code string) (domain.Session, error) {
	rec, err := s.load(ctx, code)
	if err != nil {
		return domain.Session{}, err
	}
	return rec.export(), nil
}

func (s *SessionStore) SetActive(ctx context.Context, code string, active bool) error {
	return s.update(ctx, code, func(rec *record) {
		rec.Session.Active = active
	})
}

func (s *SessionStore) SetPresenter(ctx context.Context, code string, connectionID string) error {
	return s.update(ctx, code, func(rec *record) {
		if rec.PresenterID == "" {
			rec.PresenterID = connectionID
		}
	})
}

func (s *SessionStore) Touch(ctx context.Context, code string) error {
	return s.update(ctx, code, func(*record) {})
}

func (s *SessionStore) Remove(ctx context.Context, code string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(sessionKey+code).Build()).Error(); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Srem().Key(indexKey).Member(code).Build()).Error(); err != nil {
		return fmt.Errorf("failed to unindex session: %w", err)
	}
	return nil
}

func (s *SessionStore) Codes(ctx context.Context) ([]string, error) {
	codes, err := s.client.Do(ctx, s.client.B().Smembers().Key(indexKey).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return codes, nil
}

func (s *SessionStore) load(ctx context.Context, code string) (record, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(sessionKey+code).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return record{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("failed to load session: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return record{}, fmt.Errorf("corrupt session record for %s: %w", code, err)
	}
	return rec, nil
}

func (s *SessionStore) update(ctx context.Context, code string, mutate func(*record)) error {
	rec, err := s.load(ctx, code)
	if err != nil {
		return err
	}
	mutate(&rec)
	rec.LastActivity = s.now()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// XX so a session ended mid-update is not resurrected.
	err = s.client.Do(ctx, s.client.B().Set().Key(sessionKey+code).Value(string(data)).Xx().Build()).Error()
	if valkey.IsValkeyNil(err) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (r record) export() domain.Session {
	session := r.Session
	session.LastActivity = r.LastActivity
	session.PresenterID = r.PresenterID
	return session
}
