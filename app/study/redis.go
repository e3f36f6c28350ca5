package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

const sessionKeyPrefix = "study:session:"

// RedisStore keeps sessions as JSON values whose TTL is refreshed on every save.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.StudySession, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.StudySession{}, ErrNotFound
		}
		return models.StudySession{}, fmt.Errorf("redis get session: %w", err)
	}
	var session models.StudySession
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.StudySession{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Create(ctx context.Context, session models.StudySession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, sessionKeyPrefix+session.ID, raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *RedisStore) Save(ctx context.Context, session models.StudySession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+session.ID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}
