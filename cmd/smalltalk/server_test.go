package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/config"
	"github.com/gyasis/smalltalk-sub002/events"
	"github.com/gyasis/smalltalk-sub002/internal/metrics"
	"github.com/gyasis/smalltalk-sub002/learning"
	"github.com/gyasis/smalltalk-sub002/orchestrator"
	"github.com/gyasis/smalltalk-sub002/testutil/fixtures"
	"github.com/gyasis/smalltalk-sub002/types"
)

// newTestServer builds a Server with in-memory dependencies and no provider,
// ready for Handler-level tests without binding a port.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.JWTSecret = ""
	cfg.Server.RateLimitRPS = 0

	logger := zap.NewNop()
	s := NewServer(cfg, "", logger, zap.NewAtomicLevel())
	s.collector = metrics.NewCollector(nextTestNamespace(), logger)

	store, err := learning.NewStore(learning.DefaultStoreConfig(), logger)
	require.NoError(t, err)
	s.store = store

	s.strategies = newHotStrategies(nil, cfg, logger)
	s.orch = orchestrator.New(nil, nil, logger,
		orchestrator.WithSkillsAnalyzer(s.strategies),
		orchestrator.WithPatternStrategy(s.strategies),
		orchestrator.WithSequenceStrategy(s.strategies),
	)

	t.Cleanup(func() {
		s.runCancel()
		s.orch.Close()
		_ = store.Close()
	})
	return s
}

func getJSON(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthzEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec, body := getJSON(t, s.Handler(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	// The middleware chain runs even for unauthenticated probes.
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestReadyzEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec, body := getJSON(t, s.Handler(), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "healthy", checks["store"])
	assert.Equal(t, "disabled", checks["provider"])
}

func TestReadyzEndpoint_ReportsStoreFailure(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Close())

	rec, body := getJSON(t, s.Handler(), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
}

func TestVersionEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec, body := getJSON(t, s.Handler(), "/version")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Version, body["version"])
}

func TestHandler_JWTGatesWebSocketRoute(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Server.JWTSecret = "test-secret"
	h := s.Handler()

	rec, _ := getJSON(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = getJSON(t, h, "/ws")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebSocket_StreamsSessionEvents(t *testing.T) {
	s := newTestServer(t)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=ops"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The handler subscribes after the handshake, so publish until the first
	// frame lands.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.orch.Events().Publish(events.Event{
					Type:      events.StepStarted,
					SessionID: "ops",
					StepID:    "step-1",
				})
			}
		}
	}()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev events.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, events.StepStarted, ev.Type)
	assert.Equal(t, "ops", ev.SessionID)
}

func TestWebSocket_FiltersOtherSessions(t *testing.T) {
	s := newTestServer(t)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=ops"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// Publish in order: a foreign event, then the subscriber's.
				// Only the second may appear on the wire.
				s.orch.Events().Publish(events.Event{
					Type:      events.StepStarted,
					SessionID: "someone-else",
					StepID:    "foreign",
				})
				s.orch.Events().Publish(events.Event{
					Type:      events.StepCompleted,
					SessionID: "ops",
					StepID:    "mine",
				})
			}
		}
	}()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev events.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "ops", ev.SessionID)
	assert.Equal(t, "mine", ev.StepID)
}

func TestHotStrategies_RebuildSwaps(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	hs := newHotStrategies(nil, cfg, zap.NewNop())
	before := hs.matcher.Load()

	updated := *cfg
	updated.Routing.PrimarySkillWeight = 0.7
	hs.rebuild(&updated)

	assert.NotSame(t, before, hs.matcher.Load())
}

func TestHotStrategies_MatchUsesCurrentStrategy(t *testing.T) {
	t.Parallel()

	hs := newHotStrategies(nil, config.DefaultConfig(), zap.NewNop())
	profiles := []*types.WorkerProfile{
		fixtures.ResearcherProfile("researcher"),
		fixtures.WriterProfile("writer"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	analyses, err := hs.Match(ctx, "research the history of this protocol", profiles, nil)

	require.NoError(t, err)
	require.Len(t, analyses, 2)
}

func TestApplyReload_UpdatesLevelAndStrategies(t *testing.T) {
	s := newTestServer(t)
	before := s.strategies.matcher.Load()

	old := *s.cfg
	updated := *s.cfg
	updated.Log.Level = "debug"
	updated.Routing.DomainWeight = 0.5

	s.applyReload(&old, &updated)

	assert.Equal(t, zap.DebugLevel, s.logLevel.Level())
	assert.NotSame(t, before, s.strategies.matcher.Load())
}

func TestApplyReload_NoChangeKeepsStrategies(t *testing.T) {
	s := newTestServer(t)
	before := s.strategies.matcher.Load()

	old := *s.cfg
	updated := *s.cfg
	s.applyReload(&old, &updated)

	assert.Same(t, before, s.strategies.matcher.Load())
}

func TestGormDSN(t *testing.T) {
	t.Parallel()

	pg := gormDSN(config.DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432,
		User: "svc", Password: "pw", Name: "smalltalk", SSLMode: "require",
	})
	assert.Equal(t, "host=db port=5432 user=svc password=pw dbname=smalltalk sslmode=require", pg)

	my := gormDSN(config.DatabaseConfig{
		Driver: "mysql", Host: "db", Port: 3306,
		User: "svc", Password: "pw", Name: "smalltalk",
	})
	assert.Equal(t, "svc:pw@tcp(db:3306)/smalltalk?charset=utf8mb4&parseTime=True&loc=Local", my)

	assert.Equal(t, "behavior.db", gormDSN(config.DatabaseConfig{Driver: "sqlite", Name: "behavior.db"}))
	assert.Empty(t, gormDSN(config.DatabaseConfig{Driver: "oracle"}))
}

func TestStoreConfigMapping(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Learning.Store = "redis"
	cfg.Redis.Addr = "cache:6379"
	cfg.Redis.Password = "hunter2"
	cfg.Redis.DB = 3

	sc := storeConfig(cfg)
	assert.Equal(t, learning.StoreTypeRedis, sc.Type)
	assert.Equal(t, "cache:6379", sc.RedisAddr)
	assert.Equal(t, "hunter2", sc.RedisPassword)
	assert.Equal(t, 3, sc.RedisDB)

	cfg.Learning.Store = ""
	assert.Equal(t, learning.StoreTypeMemory, storeConfig(cfg).Type)

	cfg.Learning.Store = "database"
	cfg.Database.Driver = "postgres"
	sc = storeConfig(cfg)
	assert.Equal(t, learning.StoreTypeDatabase, sc.Type)
	assert.Equal(t, "postgres", sc.Driver)
	assert.Contains(t, sc.DSN, "dbname=")
}

func TestEngineConfigMapping(t *testing.T) {
	t.Parallel()

	ec := engineConfig(config.EngineConfig{ChunkSize: 20, ChunkDelay: time.Millisecond, MaxArchived: 5})
	assert.Equal(t, 20, ec.ChunkWords)
	assert.Equal(t, time.Millisecond, ec.ChunkDelay)
	assert.Equal(t, 5, ec.HistoryLimit)

	// Zero values fall back to engine defaults.
	def := engineConfig(config.EngineConfig{})
	assert.Positive(t, def.ChunkWords)
	assert.Positive(t, def.HistoryLimit)
}
