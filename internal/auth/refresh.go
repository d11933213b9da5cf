package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidRefresh = errors.New("invalid refresh token")

// RefreshTokens is an allowlist of opaque refresh tokens.
type RefreshTokens interface {
	Issue(ctx context.Context, userID int64, tokenVersion int) (string, error)
	// Consume removes token and returns what it was issued for. A token can
	// be consumed once.
	Consume(ctx context.Context, token string) (userID int64, tokenVersion int, err error)
	Revoke(ctx context.Context, token string) error
}

// RedisRefreshStore keeps "rt:<token>" -> "<userID>|<tokenVersion>" with a TTL.
type RedisRefreshStore struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewRedisRefreshStore(rdb *redis.Client, ttl time.Duration) *RedisRefreshStore {
	return &RedisRefreshStore{RDB: rdb, TTL: ttl}
}

func (s *RedisRefreshStore) Issue(ctx context.Context, userID int64, tokenVersion int) (string, error) {
	token, err := randToken()
	if err != nil {
		return "", err
	}
	val := strconv.FormatInt(userID, 10) + "|" + strconv.Itoa(tokenVersion)
	if err := s.RDB.Set(ctx, "rt:"+token, val, s.TTL).Err(); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

func (s *RedisRefreshStore) Consume(ctx context.Context, token string) (int64, int, error) {
	val, err := s.RDB.GetDel(ctx, "rt:"+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, 0, ErrInvalidRefresh
	}
	if err != nil {
		return 0, 0, err
	}
	return parseRefreshValue(val)
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, token string) error {
	return s.RDB.Del(ctx, "rt:"+token).Err()
}

func parseRefreshValue(val string) (int64, int, error) {
	id, tv, ok := strings.Cut(val, "|")
	if !ok {
		return 0, 0, ErrInvalidRefresh
	}
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, 0, ErrInvalidRefresh
	}
	version, err := strconv.Atoi(tv)
	if err != nil {
		return 0, 0, ErrInvalidRefresh
	}
	return userID, version, nil
}

func randToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
