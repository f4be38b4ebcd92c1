package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// CeremonyStore keeps passkey challenges between the begin and finish calls.
// Loads consume the entry so a challenge can only be answered once.
type CeremonyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCeremonyStore(rdb *redis.Client, ttl time.Duration) *CeremonyStore {
	return &CeremonyStore{rdb: rdb, ttl: ttl}
}

func regKey(userID string) string     { return fmt.Sprintf("webauthn:reg:%s", userID) }
func loginKey(ceremony string) string { return fmt.Sprintf("webauthn:login:%s", ceremony) }

func (s *CeremonyStore) SaveRegistration(ctx context.Context, userID string, sd *webauthn.SessionData) error {
	return s.save(ctx, regKey(userID), sd)
}

func (s *CeremonyStore) TakeRegistration(ctx context.Context, userID string) (*webauthn.SessionData, error) {
	return s.take(ctx, regKey(userID))
}

func (s *CeremonyStore) SaveLogin(ctx context.Context, ceremonyID string, sd *webauthn.SessionData) error {
	return s.save(ctx, loginKey(ceremonyID), sd)
}

func (s *CeremonyStore) TakeLogin(ctx context.Context, ceremonyID string) (*webauthn.SessionData, error) {
	return s.take(ctx, loginKey(ceremonyID))
}

func (s *CeremonyStore) save(ctx context.Context, k string, sd *webauthn.SessionData) error {
	b, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, k, b, s.ttl).Err()
}

func (s *CeremonyStore) take(ctx context.Context, k string) (*webauthn.SessionData, error) {
	b, err := s.rdb.GetDel(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}
