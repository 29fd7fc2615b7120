package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is the identity payload stored per opaque portal session token.
// The auth provider writes these at login; this service only reads them.
type Session struct {
	PatientID   string `json:"patient_id"`
	ProdentisID string `json:"prodentis_id"`
	Phone       string `json:"phone"`
	Staff       bool   `json:"staff,omitempty"`
}

type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore reads sessions under "session:<token>". A successful lookup
// refreshes the key TTL so active sessions slide rather than hard-expire.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *SessionStore) Get(ctx context.Context, token string) (*Session, error) {
	key := fmt.Sprintf("session:%s", token)

	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	if s.ttl > 0 {
		_ = s.client.Expire(ctx, key, s.ttl).Err()
	}

	return &sess, nil
}

// Put exists for the seed tool and tests; production sessions are written by
// the auth provider at login.
func (s *SessionStore) Put(ctx context.Context, token string, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	key := fmt.Sprintf("session:%s", token)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}
