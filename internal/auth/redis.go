package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/taishikato/supavec-api/pkg/models"
)

// RedisConfig holds the key store connection.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string // e.g. "api_keys:"
}

// RedisKeyStore keeps one hash per API key with team_id and user_id fields.
type RedisKeyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisKeyStore connects to Redis and verifies the connection.
func NewRedisKeyStore(ctx context.Context, cfg RedisConfig) (*RedisKeyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisKeyStore{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisKeyStore) key(apiKey string) string {
	return s.prefix + apiKey
}

// Lookup returns the record for apiKey or ErrKeyNotFound.
func (s *RedisKeyStore) Lookup(ctx context.Context, apiKey string) (*models.APIKey, error) {
	fields, err := s.client.HGetAll(ctx, s.key(apiKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read api key: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrKeyNotFound
	}

	return &models.APIKey{
		Key:    apiKey,
		TeamID: fields["team_id"],
		UserID: fields["user_id"],
	}, nil
}

// Create mints a new random key for the given team and user.
// This is an admin path; the request path never writes keys.
func (s *RedisKeyStore) Create(ctx context.Context, teamID, userID string) (*models.APIKey, error) {
	if teamID == "" {
		return nil, fmt.Errorf("team id is required")
	}

	rec := &models.APIKey{
		Key:    uuid.NewString(),
		TeamID: teamID,
		UserID: userID,
	}

	err := s.client.HSet(ctx, s.key(rec.Key), map[string]any{
		"team_id": rec.TeamID,
		"user_id": rec.UserID,
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}

	return rec, nil
}

// Close releases the Redis connection pool.
func (s *RedisKeyStore) Close() error {
	return s.client.Close()
}
