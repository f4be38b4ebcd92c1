package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Kind tells which of the two mutually exclusive session flavours a cookie carries.
type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindUser, KindAdmin:
		return true
	}
	return false
}

var ErrNotFound = errors.New("session not found")

type AppSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewAppSessionStore(rdb *redis.Client, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

type AppSession struct {
	Kind      Kind   `json:"kind"`
	SubjectID string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func key(id string) string            { return fmt.Sprintf("app:sess:%s", id) }
func subjectSetKey(sub string) string { return fmt.Sprintf("app:subject_sessions:%s", sub) }

// Create stores a new session and returns its id.
func (s *AppSessionStore) Create(ctx context.Context, kind Kind, subjectID string) (string, error) {
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid session kind %q", kind)
	}
	if subjectID == "" {
		return "", errors.New("session subject required")
	}
	id := uuid.NewString()
	now := s.now()
	b, err := json.Marshal(AppSession{
		Kind:      kind,
		SubjectID: subjectID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(id), b, s.ttl)
	pipe.SAdd(ctx, subjectSetKey(subjectID), id)
	pipe.Expire(ctx, subjectSetKey(subjectID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// Replace drops the current session (if any) and opens a new one, so a login
// never leaves a second flavour behind on the same browser.
func (s *AppSessionStore) Replace(ctx context.Context, currentID string, kind Kind, subjectID string) (string, error) {
	if currentID != "" {
		if err := s.Delete(ctx, currentID); err != nil {
			return "", err
		}
	}
	return s.Create(ctx, kind, subjectID)
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var as AppSession
	if err := json.Unmarshal(b, &as); err != nil {
		return nil, err
	}
	if !as.Kind.IsValid() || as.ExpiresAt <= s.now().Unix() {
		return nil, ErrNotFound
	}
	return &as, nil
}

func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	as, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	if as != nil {
		pipe.SRem(ctx, subjectSetKey(as.SubjectID), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAllForSubject ends every session of a deleted or demoted account.
func (s *AppSessionStore) RevokeAllForSubject(ctx context.Context, subjectID string) error {
	ids, err := s.rdb.SMembers(ctx, subjectSetKey(subjectID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, subjectSetKey(subjectID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *AppSessionStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
