// Package cache keeps project member access levels in Redis so permission
// checks do not hit Postgres on every request.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/samruddhi2909/gitlabhq/internal/rbac"
)

// emptyField marks a cached team with no members so it is not treated as a miss.
const emptyField = "_"

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{
		client: client,
		prefix: "project:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(projectID int64) string {
	return s.prefix + strconv.FormatInt(projectID, 10) + ":members"
}

// ProjectMembers returns the cached member levels of a project. ok is false on a miss.
func (s *RedisStore) ProjectMembers(ctx context.Context, projectID int64) (map[int64]rbac.AccessLevel, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(projectID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read project members: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	members := make(map[int64]rbac.AccessLevel, len(fields))
	for field, value := range fields {
		if field == emptyField {
			continue
		}
		userID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse cached member %q: %w", field, err)
		}
		level, err := strconv.Atoi(value)
		if err != nil {
			return nil, false, fmt.Errorf("parse cached access level for %d: %w", userID, err)
		}
		members[userID] = rbac.Normalize(level)
	}
	return members, true, nil
}

// SaveProjectMembers replaces the cached member levels of a project.
func (s *RedisStore) SaveProjectMembers(ctx context.Context, projectID int64, members map[int64]rbac.AccessLevel) error {
	values := make([]any, 0, 2*len(members)+2)
	values = append(values, emptyField, "0")
	for userID, level := range members {
		values = append(values, strconv.FormatInt(userID, 10), strconv.Itoa(int(level)))
	}

	key := s.key(projectID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values...)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save project members: %w", err)
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, projectID int64) error {
	if err := s.client.Del(ctx, s.key(projectID)).Err(); err != nil {
		return fmt.Errorf("invalidate project members: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
