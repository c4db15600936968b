// Package redisstore keeps credentials in Redis, which lets a headless
// client (CLI, kiosk, test rig) share a session across hosts.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-jobportal-client/credentials"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
	userKey         = "user"
)

// Config holds Redis connection configuration
type Config struct {
	Addr        string
	Password    string
	DB          int
	Namespace   string // Key prefix, one namespace per device/profile
	DialTimeout time.Duration
	MaxRetries  int
}

// DefaultConfig returns default Redis configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:        "localhost:6379",
		Namespace:   "default",
		DialTimeout: 5 * time.Second,
		MaxRetries:  3,
	}
}

var _ credentials.Store = (*RedisStore)(nil)

type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, cfg *Config) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		MaxRetries:  cfg.MaxRetries,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "[redisstore.New] Ping")
	}
	return NewWithClient(client, cfg.Namespace), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "default"
	}
	return &RedisStore{client: client, namespace: namespace}
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

func (rs *RedisStore) key(name string) string {
	return fmt.Sprintf("jobportal:%s:%s", rs.namespace, name)
}

func (rs *RedisStore) getString(ctx context.Context, name string) (string, error) {
	v, err := rs.client.Get(ctx, rs.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "[RedisStore.get] %s", name)
	}
	return v, nil
}

func (rs *RedisStore) setString(ctx context.Context, name, value string) error {
	if value == "" {
		return errors.Wrapf(rs.client.Del(ctx, rs.key(name)).Err(), "[RedisStore.del] %s", name)
	}
	return errors.Wrapf(rs.client.Set(ctx, rs.key(name), value, 0).Err(), "[RedisStore.set] %s", name)
}

func (rs *RedisStore) GetAccessToken(ctx context.Context) (string, error) {
	return rs.getString(ctx, accessTokenKey)
}

func (rs *RedisStore) SetAccessToken(ctx context.Context, token string) error {
	return rs.setString(ctx, accessTokenKey, token)
}

func (rs *RedisStore) GetRefreshToken(ctx context.Context) (string, error) {
	return rs.getString(ctx, refreshTokenKey)
}

func (rs *RedisStore) SetRefreshToken(ctx context.Context, token string) error {
	return rs.setString(ctx, refreshTokenKey, token)
}

func (rs *RedisStore) GetUser(ctx context.Context) (*users.User, error) {
	raw, err := rs.getString(ctx, userKey)
	if err != nil || raw == "" {
		return nil, err
	}
	var user users.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, errors.Wrap(err, "[RedisStore.GetUser] Unmarshal")
	}
	return &user, nil
}

func (rs *RedisStore) SetUser(ctx context.Context, user *users.User) error {
	if user == nil {
		return rs.setString(ctx, userKey, "")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[RedisStore.SetUser] Marshal")
	}
	return rs.setString(ctx, userKey, string(data))
}

func (rs *RedisStore) ClearAll(ctx context.Context) error {
	err := rs.client.Del(ctx, rs.key(accessTokenKey), rs.key(refreshTokenKey), rs.key(userKey)).Err()
	return errors.Wrap(err, "[RedisStore.ClearAll] Del")
}
