package learning

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/internal/database"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Store errors.
var (
	ErrModelNotFound = errors.New("behavior model not found")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidModel  = errors.New("invalid behavior model")
)

// StoreType selects a persistence backend.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDatabase StoreType = "database"
)

// StoreConfig configures a behavior model store.
type StoreConfig struct {
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the file store's directory.
	BaseDir string `json:"base_dir,omitempty" yaml:"base_dir"`

	// Redis settings.
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db"`
	KeyPrefix     string `json:"key_prefix,omitempty" yaml:"key_prefix"`

	// Database settings. Driver is one of sqlite, postgres, mysql.
	Driver string `json:"driver,omitempty" yaml:"driver"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn"`
}

// DefaultStoreConfig returns an in-memory store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Type: StoreTypeMemory}
}

// Store persists user behavior models. Implementations hand out deep copies;
// callers never share mutable state with the store.
type Store interface {
	// Load returns the model for a user, or ErrModelNotFound.
	Load(ctx context.Context, userID string) (*types.UserBehaviorModel, error)
	// Save writes the model, replacing any previous version.
	Save(ctx context.Context, model *types.UserBehaviorModel) error
	// Users lists the user ids with stored models.
	Users(ctx context.Context) ([]string, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// NewStore creates a Store from configuration.
func NewStore(config StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeFile:
		return NewFileStore(config.BaseDir, logger)
	case StoreTypeRedis:
		return NewRedisStore(config, logger)
	case StoreTypeDatabase:
		db, err := database.Open(database.Config{Driver: config.Driver, DSN: config.DSN}, logger)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db, logger)
	default:
		return nil, fmt.Errorf("unsupported behavior store type: %s", config.Type)
	}
}
