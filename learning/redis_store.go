package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

// RedisStore keeps behavior models in Redis, one JSON value per user.
// Suitable for distributed deployments where several nodes share models.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(config StoreConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "smalltalk:behavior:"
	}

	store := &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger.With(zap.String("component", "redis_behavior_store")),
	}
	store.logger.Debug("connected to redis", zap.String("addr", config.RedisAddr))

	return store, nil
}

// modelKey returns the Redis key for a user's model.
func (s *RedisStore) modelKey(userID string) string {
	return s.keyPrefix + userID
}

// Load retrieves the model for a user.
func (s *RedisStore) Load(ctx context.Context, userID string) (*types.UserBehaviorModel, error) {
	data, err := s.client.Get(ctx, s.modelKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load behavior model: %w", err)
	}

	var model types.UserBehaviorModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal behavior model: %w", err)
	}

	return &model, nil
}

// Save persists the model, replacing any previous version.
func (s *RedisStore) Save(ctx context.Context, model *types.UserBehaviorModel) error {
	if model == nil || model.UserID == "" {
		return ErrInvalidModel
	}

	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal behavior model: %w", err)
	}

	return s.client.Set(ctx, s.modelKey(model.UserID), data, 0).Err()
}

// Users lists the IDs of all stored models in sorted order.
func (s *RedisStore) Users(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, s.keyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, s.keyPrefix))
	}
	sort.Strings(ids)

	return ids, nil
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
