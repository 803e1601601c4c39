package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

// FileStore persists behavior models as one JSON document per user.
// Suitable for single-node deployments where models must survive restarts.
type FileStore struct {
	baseDir string
	models  map[string]*types.UserBehaviorModel // in-memory cache
	mu      sync.RWMutex
	closed  bool
	logger  *zap.Logger
}

// NewFileStore creates a file-backed store rooted at baseDir.
func NewFileStore(baseDir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Join(baseDir, "behavior")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create behavior store directory: %w", err)
	}

	store := &FileStore{
		baseDir: dir,
		models:  make(map[string]*types.UserBehaviorModel),
		logger:  logger.With(zap.String("component", "file_behavior_store")),
	}

	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load behavior models from disk: %w", err)
	}

	return store, nil
}

// loadFromDisk reads every persisted model into the in-memory cache.
func (s *FileStore) loadFromDisk() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			return err
		}

		var model types.UserBehaviorModel
		if err := json.Unmarshal(data, &model); err != nil {
			s.logger.Warn("skipping unreadable behavior model file",
				zap.String("file", entry.Name()),
				zap.Error(err))
			continue
		}
		if model.UserID == "" {
			continue
		}

		s.models[model.UserID] = &model
	}

	return nil
}

// saveToDisk writes one model atomically: temp file then rename.
func (s *FileStore) saveToDisk(model *types.UserBehaviorModel) error {
	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(s.baseDir, model.UserID+".json")
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

// Load retrieves the model for a user.
func (s *FileStore) Load(ctx context.Context, userID string) (*types.UserBehaviorModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	model, ok := s.models[userID]
	if !ok {
		return nil, ErrModelNotFound
	}

	return model.Clone(), nil
}

// Save persists the model, replacing any previous version.
func (s *FileStore) Save(ctx context.Context, model *types.UserBehaviorModel) error {
	if model == nil || model.UserID == "" {
		return ErrInvalidModel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	cp := model.Clone()
	if err := s.saveToDisk(cp); err != nil {
		return fmt.Errorf("failed to persist behavior model: %w", err)
	}
	s.models[cp.UserID] = cp

	return nil
}

// Users lists the IDs of all stored models in sorted order.
func (s *FileStore) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

// Ping checks that the store is open and its directory still writable.
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, err := os.Stat(s.baseDir); err != nil {
		return err
	}
	return nil
}

// Close marks the store closed. Models are already on disk.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
