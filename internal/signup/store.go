package signup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sugarcraft/academy-backend/pkg/redis"
)

// PendingSignup is the signup payload stashed between checkout-session
// creation and the completion webhook. It never touches provider metadata;
// only the session id travels through Stripe.
type PendingSignup struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	PlanID    string `json:"plan_id"`
}

type signupStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PendingSignupKey(sessionID string) string
}

// Store keeps pending signups in Redis, keyed by checkout session id, with a
// TTL bounding how long an unpaid checkout stays claimable.
type Store struct {
	store signupStore
	ttl   time.Duration
}

func NewStore(store signupStore, ttl time.Duration) (*Store, error) {
	if store == nil {
		return nil, errors.New("signup store backend is required")
	}
	if ttl <= 0 {
		return nil, errors.New("signup ttl must be positive")
	}
	return &Store{store: store, ttl: ttl}, nil
}

func (s *Store) Put(ctx context.Context, sessionID string, pending PendingSignup) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending signup: %w", err)
	}
	return s.store.Set(ctx, s.store.PendingSignupKey(sessionID), string(payload), s.ttl)
}

// Take reads and deletes the pending signup for a session. found is false
// when the key is missing or expired.
func (s *Store) Take(ctx context.Context, sessionID string) (PendingSignup, bool, error) {
	if sessionID == "" {
		return PendingSignup{}, false, errors.New("session id is required")
	}
	key := s.store.PendingSignupKey(sessionID)
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return PendingSignup{}, false, nil
		}
		return PendingSignup{}, false, fmt.Errorf("read pending signup: %w", err)
	}
	if raw == "" {
		return PendingSignup{}, false, nil
	}
	var pending PendingSignup
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return PendingSignup{}, false, fmt.Errorf("decode pending signup: %w", err)
	}
	if err := s.store.Del(ctx, key); err != nil {
		return pending, true, fmt.Errorf("clear pending signup: %w", err)
	}
	return pending, true, nil
}
