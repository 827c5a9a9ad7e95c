package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"github.com/redis/go-redis/v9"
)

/*
Stores sessions in Redis.

	session:<token>        user id
	user_sessions:<userID> set of that user's tokens

With a TTL, session keys expire on their own. The per-user set may then hold
stale tokens for a while; they are dropped whenever the set is listed.
*/
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SessionStore = &RedisSessionStore{}
var _ UserSessionAdmin = &RedisSessionStore{}

func NewRedisSessionStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, oops.New(err, "failed to parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, oops.New(err, "failed to connect to redis")
	}

	return NewRedisSessionStoreWithClient(client, ttl), nil
}

func NewRedisSessionStoreWithClient(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(token string) string { return "session:" + token }

func userSessionsKey(userID int) string { return "user_sessions:" + strconv.Itoa(userID) }

func (s *RedisSessionStore) SaveSession(ctx context.Context, userID int, token string) error {
	// A token that used to belong to someone else must leave their set.
	if prev, ok, err := s.SessionUserID(ctx, token); err != nil {
		return err
	} else if ok && prev != userID {
		if err := s.client.SRem(ctx, userSessionsKey(prev), token).Err(); err != nil {
			return oops.New(err, "failed to detach session from previous user")
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(token), userID, s.ttl)
		pipe.SAdd(ctx, userSessionsKey(userID), token)
		return nil
	})
	if err != nil {
		return oops.New(err, "failed to save session")
	}
	return nil
}

func (s *RedisSessionStore) SessionUserID(ctx context.Context, token string) (int, bool, error) {
	userID, err := s.client.Get(ctx, sessionKey(token)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, oops.New(err, "failed to look up session")
	}
	return userID, true, nil
}

func (s *RedisSessionStore) ListSessions(ctx context.Context, token string) ([]models.UserSession, error) {
	userID, ok, err := s.SessionUserID(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.UserSession{}, nil
	}
	return s.UserSessions(ctx, userID)
}

func (s *RedisSessionStore) UserSessions(ctx context.Context, userID int) ([]models.UserSession, error) {
	tokens, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, oops.New(err, "failed to list sessions")
	}

	result := make([]models.UserSession, 0, len(tokens))
	var stale []any
	for _, t := range tokens {
		owner, ok, err := s.SessionUserID(ctx, t)
		if err != nil {
			return nil, err
		}
		if !ok || owner != userID {
			stale = append(stale, t)
			continue
		}
		result = append(result, models.UserSession{Session: t})
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, userSessionsKey(userID), stale...).Err(); err != nil {
			return nil, oops.New(err, "failed to prune expired sessions")
		}
	}

	return result, nil
}

func (s *RedisSessionStore) RemoveSession(ctx context.Context, current, other string) error {
	owner, ok, err := s.SessionUserID(ctx, current)
	if err != nil || !ok {
		return err
	}

	otherOwner, ok, err := s.SessionUserID(ctx, other)
	if err != nil || !ok || otherOwner != owner {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(other))
		pipe.SRem(ctx, userSessionsKey(owner), other)
		return nil
	})
	if err != nil {
		return oops.New(err, "failed to remove session")
	}
	return nil
}

func (s *RedisSessionStore) RemoveAllSessions(ctx context.Context, current string) error {
	owner, ok, err := s.SessionUserID(ctx, current)
	if err != nil || !ok {
		return err
	}
	_, err = s.RemoveUserSessions(ctx, owner)
	return err
}

// Returns how many live sessions were removed.
func (s *RedisSessionStore) RemoveUserSessions(ctx context.Context, userID int) (int64, error) {
	tokens, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, oops.New(err, "failed to list sessions")
	}

	keys := []string{userSessionsKey(userID)}
	for _, t := range tokens {
		keys = append(keys, sessionKey(t))
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, oops.New(err, "failed to remove sessions")
	}
	if n > 0 {
		n-- // the set itself
	}
	return n, nil
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
