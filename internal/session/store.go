package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antoniostano/sara/internal/store"
)

// TTL is the call session lifetime, refreshed on every write.
const TTL = 2 * time.Hour

func key(callID string) string { return "call:" + callID }

// Store reads and writes sessions in the keyed store.
type Store struct {
	kv store.KV
}

func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

// Get loads the session for a call. A missing key, a store error or damaged
// JSON all yield a fresh session and the dialogue starts over.
func (s *Store) Get(ctx context.Context, callID string) *Session {
	raw, err := s.kv.Get(ctx, key(callID))
	if err != nil {
		return New()
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return New()
	}
	if sess.State == "" {
		sess.State = StateGreet
	}
	if sess.Items == nil {
		sess.Items = []Item{}
	}
	return &sess
}

// Save writes the session back and refreshes its lifetime. Failures are
// returned for accounting but the call flow treats them as best-effort.
func (s *Store) Save(ctx context.Context, callID string, sess *Session) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.LastTouched = now
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, key(callID), string(raw), TTL); err != nil {
		return fmt.Errorf("save session %s: %w", callID, err)
	}
	return nil
}
