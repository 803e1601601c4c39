package learning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyasis/smalltalk-sub002/types"
)

func sampleModel(userID string) *types.UserBehaviorModel {
	model := types.NewUserBehaviorModel(userID)
	model.WorkerPreferences["ada"] = 0.65
	model.PatternPreferences["sequential-handoff"] = 0.55
	model.InterruptionFrequency = 0.2
	model.AvgSessionDuration = 9 * time.Minute
	model.SatisfactionDrivers = []string{"concise", "accurate"}
	model.FeedbackCount = 7
	model.PositiveCount = 4
	model.RecentSentiments = []types.Sentiment{types.SentimentPositive, types.SentimentNegative}
	model.Patterns[types.PatternKey(types.FeedbackExplicit, "ada", types.SentimentPositive)] = &types.BehaviorPattern{
		Kind:        types.FeedbackExplicit,
		Worker:      "ada",
		Sentiment:   types.SentimentPositive,
		Occurrences: 2,
	}
	return model
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := store.Load(ctx, "nobody")
		assert.ErrorIs(t, err, ErrModelNotFound)
	})

	t.Run("SaveInvalid", func(t *testing.T) {
		assert.ErrorIs(t, store.Save(ctx, nil), ErrInvalidModel)
		assert.ErrorIs(t, store.Save(ctx, &types.UserBehaviorModel{}), ErrInvalidModel)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sampleModel("u1")))

		loaded, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0.65, loaded.WorkerPreferences["ada"])
		assert.Equal(t, 7, loaded.FeedbackCount)
	})

	t.Run("HandsOutCopies", func(t *testing.T) {
		first, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		first.WorkerPreferences["ada"] = 0.0

		second, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0.65, second.WorkerPreferences["ada"])
	})

	t.Run("Users", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sampleModel("b-user")))
		require.NoError(t, store.Save(ctx, sampleModel("a-user")))

		users, err := store.Users(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a-user", "b-user", "u1"}, users)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		closed := NewMemoryStore()
		require.NoError(t, closed.Close())

		_, err := closed.Load(ctx, "u1")
		assert.ErrorIs(t, err, ErrStoreClosed)
		assert.ErrorIs(t, closed.Save(ctx, sampleModel("u1")), ErrStoreClosed)
		assert.ErrorIs(t, closed.Ping(ctx), ErrStoreClosed)
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sampleModel("u1")))

		loaded, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0.65, loaded.WorkerPreferences["ada"])
		assert.Equal(t, 9*time.Minute, loaded.AvgSessionDuration)
	})

	t.Run("PersistsOnDisk", func(t *testing.T) {
		_, err := os.Stat(filepath.Join(dir, "behavior", "u1.json"))
		assert.NoError(t, err)
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		require.NoError(t, store.Close())

		reopened, err := NewFileStore(dir, nil)
		require.NoError(t, err)
		defer reopened.Close()

		loaded, err := reopened.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 7, loaded.FeedbackCount)

		pat := loaded.Patterns[types.PatternKey(types.FeedbackExplicit, "ada", types.SentimentPositive)]
		require.NotNil(t, pat)
		assert.Equal(t, 2, pat.Occurrences)
	})

	t.Run("IgnoresUnreadableFiles", func(t *testing.T) {
		scratch := t.TempDir()
		behaviorDir := filepath.Join(scratch, "behavior")
		require.NoError(t, os.MkdirAll(behaviorDir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(behaviorDir, "garbage.json"), []byte("{not json"), 0644))

		clean, err := NewFileStore(scratch, nil)
		require.NoError(t, err)
		defer clean.Close()

		users, err := clean.Users(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}

func TestNewStore_Factory(t *testing.T) {
	t.Run("DefaultsToMemory", func(t *testing.T) {
		store, err := NewStore(DefaultStoreConfig(), nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("File", func(t *testing.T) {
		store, err := NewStore(StoreConfig{Type: StoreTypeFile, BaseDir: t.TempDir()}, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &FileStore{}, store)
	})

	t.Run("Database", func(t *testing.T) {
		store, err := NewStore(StoreConfig{Type: StoreTypeDatabase, Driver: "sqlite", DSN: ":memory:"}, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &GormStore{}, store)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := NewStore(StoreConfig{Type: "carrier-pigeon"}, nil)
		assert.Error(t, err)
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		_, err := NewStore(StoreConfig{Type: StoreTypeDatabase, Driver: "oracle"}, nil)
		assert.Error(t, err)
	})
}
