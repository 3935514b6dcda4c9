package service

import (
	"context"
	"errors"
	"time"

	"github.com/lamplight/frontsession/internal/session/domain"
	"github.com/lamplight/frontsession/internal/session/store"
	"github.com/lamplight/frontsession/pkg/idx"
)

// SessionValues is the data this service keeps in one server-side session.
type SessionValues struct {
	UserID     string
	BrowserUID string
	TenantID   string
}

// SessionStore scopes one request to a single session row. Start is
// idempotent, Destroy only invalidates server-side state (the caller pairs it
// with clearing cookies) and Commit persists a fresh row when values were set.
type SessionStore struct {
	sessions store.Sessions
	ttl      time.Duration

	id      string
	started bool
	exists  bool
	loaded  domain.Session
	values  SessionValues
	dirty   bool
}

func NewSessionStore(sessions store.Sessions, ttl time.Duration, id string) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{sessions: sessions, ttl: ttl, id: id}
}

// Start loads the backing row once. Later calls within the same request are
// no-ops. An expired row is deleted and treated as absent.
func (s *SessionStore) Start(ctx context.Context) error {
	if s.started {
		return nil
	}
	s.started = true

	if s.id == "" {
		return nil
	}

	sess, err := s.sessions.GetSession(ctx, s.id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if sess.Expired(time.Now().UTC()) {
		return s.sessions.DeleteSession(ctx, sess.ID)
	}

	s.exists = true
	s.loaded = sess
	s.values = SessionValues{
		UserID:     sess.UserID,
		BrowserUID: sess.BrowserUID,
		TenantID:   sess.TenantID,
	}
	return nil
}

// Exists reports whether Start found a live row.
func (s *SessionStore) Exists() bool { return s.exists }

// Session returns the loaded row.
func (s *SessionStore) Session() domain.Session { return s.loaded }

// Values returns the current session data.
func (s *SessionStore) Values() SessionValues { return s.values }

// Set replaces the session data; Commit persists it.
func (s *SessionStore) Set(v SessionValues) {
	s.values = v
	s.dirty = true
}

// Destroy invalidates the server-side row. It deliberately leaves every
// cookie alone: a destroyed session with a surviving remember cookie would
// resurrect on the next visit, so the caller must clear both.
func (s *SessionStore) Destroy(ctx context.Context) error {
	id := s.id
	if s.exists {
		id = s.loaded.ID
	}
	s.exists = false
	s.dirty = false
	s.loaded = domain.Session{}
	s.values = SessionValues{}

	if id == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Commit persists set values as a fresh row and returns it. Without a prior
// Set it returns the loaded row unchanged.
func (s *SessionStore) Commit(ctx context.Context) (domain.Session, error) {
	if !s.dirty {
		return s.loaded, nil
	}

	now := time.Now().UTC()
	sess := domain.Session{
		ID:         idx.New().String(),
		UserID:     s.values.UserID,
		BrowserUID: s.values.BrowserUID,
		TenantID:   s.values.TenantID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}

	s.dirty = false
	s.exists = true
	s.loaded = sess
	return sess, nil
}
