// Package session implements the server side of the cookie session:
// opaque ids handed to the browser, state kept in Redis under a TTL.
// Each session carries the CSRF token the client must echo back on
// state-changing requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CSRFToken string    `json:"csrf_token"`
	CreatedAt time.Time `json:"created_at"`
}

// Authenticated reports whether a user has logged in on this session.
// Guest sessions exist so the CSRF handshake can happen before login.
func (s *Session) Authenticated() bool {
	return s.UserID != uuid.Nil
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return "session:" + id
}

func newToken() string {
	return uuid.Must(uuid.NewV4()).String()
}

// Create starts a guest session with a fresh CSRF token.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:        newToken(),
		CSRFToken: newToken(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &sess, nil
}

// Login binds a user to the session. The session id is regenerated so a
// pre-login id fixed by an attacker stops working, and the CSRF token is
// rotated with it.
func (s *Store) Login(ctx context.Context, sess *Session, userID uuid.UUID) (*Session, error) {
	if err := s.Destroy(ctx, sess.ID); err != nil {
		return nil, err
	}
	fresh := &Session{
		ID:        newToken(),
		UserID:    userID,
		CSRFToken: newToken(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.save(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// RotateCSRF issues a new token for an existing session, keeping the id.
func (s *Store) RotateCSRF(ctx context.Context, sess *Session) error {
	sess.CSRFToken = newToken()
	return s.save(ctx, sess)
}

// Touch extends the session TTL without rewriting its payload.
func (s *Store) Touch(ctx context.Context, id string) error {
	ok, err := s.client.Expire(ctx, sessionKey(id), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("session touch: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("session destroy: %w", err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}
