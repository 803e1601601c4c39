package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gyasis/smalltalk-sub002/types"
)

// BehaviorRecord is the database row backing one user's behavior model.
// The model itself is stored as a JSON blob so schema changes in the
// model never require a table migration.
type BehaviorRecord struct {
	UserID    string    `gorm:"primaryKey;size:128" json:"user_id"`
	Data      []byte    `gorm:"type:bytes" json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table used for behavior records.
func (BehaviorRecord) TableName() string {
	return "behavior_models"
}

// GormStore keeps behavior models in a relational database via GORM.
// Works with SQLite, PostgreSQL and MySQL.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore migrates the behavior table and returns a database-backed store.
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("nil database handle")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := db.AutoMigrate(&BehaviorRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "db_behavior_store")),
	}, nil
}

// Load retrieves the model for a user.
func (s *GormStore) Load(ctx context.Context, userID string) (*types.UserBehaviorModel, error) {
	var rec BehaviorRecord
	err := s.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load behavior model: %w", err)
	}

	var model types.UserBehaviorModel
	if err := json.Unmarshal(rec.Data, &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal behavior model: %w", err)
	}

	return &model, nil
}

// Save persists the model, replacing any previous version.
func (s *GormStore) Save(ctx context.Context, model *types.UserBehaviorModel) error {
	if model == nil || model.UserID == "" {
		return ErrInvalidModel
	}

	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal behavior model: %w", err)
	}

	rec := BehaviorRecord{
		UserID:    model.UserID,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to persist behavior model: %w", err)
	}

	return nil
}

// Users lists the IDs of all stored models in sorted order.
func (s *GormStore) Users(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&BehaviorRecord{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list behavior models: %w", err)
	}

	return ids, nil
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure GormStore implements Store
var _ Store = (*GormStore)(nil)
