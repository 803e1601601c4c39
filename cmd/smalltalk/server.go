package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/analysis"
	"github.com/gyasis/smalltalk-sub002/config"
	"github.com/gyasis/smalltalk-sub002/engine"
	"github.com/gyasis/smalltalk-sub002/events"
	"github.com/gyasis/smalltalk-sub002/internal/metrics"
	"github.com/gyasis/smalltalk-sub002/internal/server"
	"github.com/gyasis/smalltalk-sub002/internal/telemetry"
	"github.com/gyasis/smalltalk-sub002/learning"
	"github.com/gyasis/smalltalk-sub002/learning/adapt"
	"github.com/gyasis/smalltalk-sub002/llm"
	"github.com/gyasis/smalltalk-sub002/orchestrator"
	"github.com/gyasis/smalltalk-sub002/routing/pattern"
	"github.com/gyasis/smalltalk-sub002/routing/predict"
	"github.com/gyasis/smalltalk-sub002/routing/sequence"
	"github.com/gyasis/smalltalk-sub002/routing/skills"
	"github.com/gyasis/smalltalk-sub002/types"
)

// Server wires configuration into a running node: provider chain, behavior
// store, routing strategies, orchestrator, HTTP listeners and telemetry.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	logLevel   zap.AtomicLevel

	runCtx    context.Context
	runCancel context.CancelFunc

	collector   *metrics.Collector
	telemetry   *telemetry.Providers
	redisClient *redis.Client
	provider    llm.Provider
	store       learning.Store
	orch        *orchestrator.Orchestrator
	strategies  *hotStrategies

	httpManager    *server.Manager
	metricsManager *server.Manager
	hotReload      *config.HotReloadManager

	natsConn   *nats.Conn
	natsBridge *events.Bridge
	busUnsub   func()
}

// NewServer creates a server from validated configuration. configPath enables
// hot reload when non-empty; logLevel is the handle the reload path uses to
// change verbosity.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, logLevel zap.AtomicLevel) *Server {
	runCtx, runCancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		logLevel:   logLevel,
		runCtx:     runCtx,
		runCancel:  runCancel,
	}
}

// Start assembles every component and begins listening. It returns once both
// listeners are accepting; use WaitForShutdown to block.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("smalltalk", s.logger)

	providers, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("telemetry init failed, tracing disabled", zap.Error(err))
	} else {
		s.telemetry = providers
	}

	if s.cfg.LLM.Cache.Enabled && s.cfg.LLM.Cache.UseRedis {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		})
	}

	s.provider = s.buildProvider()

	store, err := learning.NewStore(storeConfig(s.cfg), s.logger)
	if err != nil {
		return fmt.Errorf("open behavior store: %w", err)
	}
	backend := s.cfg.Learning.Store
	if backend == "" {
		backend = string(learning.StoreTypeMemory)
	}
	s.store = metrics.InstrumentStore(store, backend, s.collector)
	learner := learning.NewLearner(s.store, learnerConfig(s.cfg.Learning), s.logger)

	var analyzer *analysis.Analyzer
	if s.provider != nil {
		analyzer = analysis.NewAnalyzer(s.provider, analysis.WithLogger(s.logger))
	}
	s.strategies = newHotStrategies(analyzer, s.cfg, s.logger)
	router := predict.NewRouter(analyzer, predictConfig(s.cfg.Predict), s.logger)
	planner := adapt.NewPlanner(analyzer, &adapt.Config{ConfidenceGate: s.cfg.Routing.AdaptationGate}, s.logger)

	s.orch = orchestrator.New(s.provider, &orchestrator.Config{
		Engine: engineConfig(s.cfg.Engine),
		Bus:    events.Config{Buffer: s.cfg.Events.BufferSize},
	}, s.logger,
		orchestrator.WithSkillsAnalyzer(s.strategies),
		orchestrator.WithPatternStrategy(s.strategies),
		orchestrator.WithSequenceStrategy(s.strategies),
		orchestrator.WithRoutePredictor(router),
		orchestrator.WithLearner(learner),
		orchestrator.WithPlanner(planner),
	)

	ch, unsub := s.orch.Events().Subscribe()
	s.busUnsub = unsub
	go metrics.NewBridge(s.collector, s.logger).Consume(s.runCtx, ch)

	if s.cfg.Events.NATS.Enabled {
		s.startNATSBridge()
	}

	if s.configPath != "" {
		s.hotReload = config.NewHotReloadManager(s.cfg, s.configPath, s.logger)
		s.hotReload.OnReload(s.applyReload)
		if err := s.hotReload.Start(s.runCtx); err != nil {
			s.logger.Warn("config hot reload unavailable", zap.Error(err))
			s.hotReload = nil
		}
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	s.logger.Info("node started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("store", backend),
		zap.Bool("provider", s.provider != nil),
	)
	return nil
}

// buildProvider assembles the completion provider chain. A missing API key
// yields nil; routing then uses the deterministic fallback paths.
func (s *Server) buildProvider() llm.Provider {
	lc := s.cfg.LLM
	if lc.APIKey == "" {
		s.logger.Warn("no llm api key configured, routing uses deterministic fallbacks")
		return nil
	}

	providerConfig := &llm.Config{
		BaseURL:      lc.BaseURL,
		APIKey:       lc.APIKey,
		Model:        lc.Model,
		Temperature:  lc.Temperature,
		MaxTokens:    lc.MaxTokens,
		Timeout:      lc.Timeout,
		RateLimitRPS: lc.RateLimitRPS,
	}
	var base llm.Provider
	switch lc.Provider {
	case "anthropic":
		base = llm.NewAnthropicProvider(providerConfig, s.logger)
	case "", "openai":
		base = llm.NewOpenAIProvider(providerConfig, s.logger)
	default:
		// Unknown names fall back to the OpenAI wire format, which most
		// self-hosted gateways speak.
		s.logger.Warn("unknown llm provider, using openai-compatible client",
			zap.String("provider", lc.Provider))
		base = llm.NewOpenAIProvider(providerConfig, s.logger)
	}

	policy := llm.DefaultRetryPolicy()
	if lc.MaxRetries > 0 {
		policy.MaxRetries = lc.MaxRetries
	}
	var p llm.Provider = llm.NewRetryProvider(base, policy, s.logger)

	if lc.Cache.Enabled {
		p = llm.NewCachedProvider(p, s.redisClient, &llm.CacheConfig{
			LocalTTL:    lc.Cache.LocalTTL,
			RedisTTL:    lc.Cache.RedisTTL,
			EnableLocal: true,
			EnableRedis: lc.Cache.UseRedis && s.redisClient != nil,
		}, s.logger)
	}

	return metrics.InstrumentProvider(p, s.collector)
}

func (s *Server) startNATSBridge() {
	nc := s.cfg.Events.NATS
	conn, err := nats.Connect(nc.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		s.logger.Warn("nats connect failed, event bridge disabled",
			zap.String("url", nc.URL), zap.Error(err))
		return
	}
	bridge, err := events.NewBridge(conn, s.orch.Events(), events.BridgeConfig{
		SubjectPrefix: nc.SubjectPrefix,
	}, s.logger)
	if err != nil {
		s.logger.Warn("nats bridge init failed", zap.Error(err))
		conn.Close()
		return
	}
	s.natsConn = conn
	s.natsBridge = bridge
}

// applyReload reacts to a config file change. Only the sections that can take
// effect without tearing down live components are applied: log level and the
// routing strategies. Predictor tuning stays fixed so the run-outcome history
// it accumulated is not orphaned mid-flight.
func (s *Server) applyReload(old, updated *config.Config) {
	if old.Log.Level != updated.Log.Level {
		s.logLevel.SetLevel(parseLogLevel(updated.Log.Level))
		s.logger.Info("log level changed",
			zap.String("from", old.Log.Level), zap.String("to", updated.Log.Level))
	}
	if old.Routing != updated.Routing {
		s.strategies.rebuild(updated)
		s.logger.Info("routing strategies rebuilt from updated config")
	}
}

// Handler assembles the HTTP API behind the middleware chain. It is separate
// from Start so tests can exercise routes without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/ws", s.handleWS)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RateLimiter(s.runCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		JWTAuth(s.cfg.Server.JWTSecret, []string{"/healthz", "/readyz", "/version"}, s.logger),
	)
}

func (s *Server) startHTTPServer() error {
	s.httpManager = server.NewManager(s.Handler(), server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.metricsManager = server.NewManager(mux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown blocks until SIGINT/SIGTERM or a listener error, then runs
// graceful shutdown.
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("received signal", zap.String("signal", sig.String()))
	case err := <-s.httpManager.Errors():
		if err != nil {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.Shutdown(ctx)
}

// Shutdown stops listeners first, then drains the pipeline outward-in.
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("shutting down")

	if s.hotReload != nil {
		s.hotReload.Stop()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics shutdown", zap.Error(err))
		}
	}

	s.runCancel()
	if s.busUnsub != nil {
		s.busUnsub()
	}
	if s.natsBridge != nil {
		s.natsBridge.Close()
	}
	if s.natsConn != nil {
		s.natsConn.Close()
	}
	if s.orch != nil {
		s.orch.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("store close", zap.Error(err))
		}
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}

	s.logger.Info("shutdown complete")
}

// ===== Handlers =====

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// handleReadyz reports per-dependency health. Any failing check flips the
// status to 503 so load balancers stop routing here.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		checks["store"] = "healthy"
	}

	if s.provider != nil {
		if err := s.provider.HealthCheck(ctx); err != nil {
			checks["provider"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["provider"] = "healthy"
		}
	} else {
		checks["provider"] = "disabled"
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ===== Hot-swappable strategies =====

// hotStrategies holds the routing strategies behind atomic pointers so a
// config reload can replace them while requests are in flight. It satisfies
// the orchestrator strategy interfaces directly.
type hotStrategies struct {
	analyzer *analysis.Analyzer
	logger   *zap.Logger

	matcher   atomic.Pointer[skills.Matcher]
	selector  atomic.Pointer[pattern.Selector]
	optimizer atomic.Pointer[sequence.Optimizer]
}

var (
	_ orchestrator.SkillsAnalyzer   = (*hotStrategies)(nil)
	_ orchestrator.PatternStrategy  = (*hotStrategies)(nil)
	_ orchestrator.SequenceStrategy = (*hotStrategies)(nil)
)

func newHotStrategies(analyzer *analysis.Analyzer, cfg *config.Config, logger *zap.Logger) *hotStrategies {
	h := &hotStrategies{analyzer: analyzer, logger: logger}
	h.rebuild(cfg)
	return h
}

// rebuild swaps in fresh strategies derived from cfg.Routing.
func (h *hotStrategies) rebuild(cfg *config.Config) {
	h.matcher.Store(skills.NewMatcher(h.analyzer, skillsConfig(cfg.Routing), h.logger))
	h.selector.Store(pattern.NewSelector(h.analyzer, patternConfig(cfg.Routing), h.logger))
	h.optimizer.Store(sequence.NewOptimizer(h.analyzer, nil, h.logger))
}

func (h *hotStrategies) Match(ctx context.Context, request string, profiles []*types.WorkerProfile, recent []types.Turn) ([]*types.SkillsMatchAnalysis, error) {
	return h.matcher.Load().Match(ctx, request, profiles, recent)
}

func (h *hotStrategies) Select(ctx context.Context, request string, analyses []*types.SkillsMatchAnalysis) (*types.CollaborationRecommendation, error) {
	return h.selector.Load().Select(ctx, request, analyses)
}

func (h *hotStrategies) Optimize(ctx context.Context, request string, rec *types.CollaborationRecommendation, analyses []*types.SkillsMatchAnalysis) (*types.OptimizedSequence, error) {
	return h.optimizer.Load().Optimize(ctx, request, rec, analyses)
}

// ===== Config mapping =====

func skillsConfig(rc config.RoutingConfig) *skills.Config {
	c := skills.DefaultConfig()
	c.PrimarySkillWeight = rc.PrimarySkillWeight
	c.DomainWeight = rc.DomainWeight
	c.TaskTypeWeight = rc.TaskTypeWeight
	c.CollaborationWeight = rc.CollaborationWeight
	c.FallbackConfidence = rc.FallbackConfidence
	return c
}

func patternConfig(rc config.RoutingConfig) *pattern.Config {
	c := pattern.DefaultConfig()
	if rc.TopWorkers > 0 {
		c.TopWorkers = rc.TopWorkers
	}
	if rc.OpportunityConcurrency > 0 {
		c.OpportunityConcurrency = rc.OpportunityConcurrency
	}
	c.FallbackConfidence = rc.FallbackConfidence
	return c
}

func predictConfig(pc config.PredictConfig) *predict.Config {
	c := predict.DefaultConfig()
	if pc.Alpha > 0 {
		c.Alpha = pc.Alpha
	}
	if pc.SingleExpertThreshold > 0 {
		c.SingleExpertThreshold = pc.SingleExpertThreshold
	}
	if pc.ComplexityThreshold > 0 {
		c.DebateComplexityThreshold = pc.ComplexityThreshold
	}
	if pc.MaxAlternatives > 0 {
		c.MaxAlternatives = pc.MaxAlternatives
	}
	if pc.TokenModel != "" {
		c.TokenEncoding = pc.TokenModel
	}
	return c
}

func learnerConfig(lc config.LearningConfig) *learning.Config {
	c := learning.DefaultConfig()
	if lc.PreferenceNudge > 0 {
		c.PreferenceStep = lc.PreferenceNudge
	}
	if lc.MaxKeywords > 0 {
		c.MaxKeywords = lc.MaxKeywords
	}
	if lc.PatternThreshold > 0 {
		c.PatternThreshold = lc.PatternThreshold
	}
	if lc.RecentWindow > 0 {
		c.RecentWindow = lc.RecentWindow
	}
	if lc.ShiftThreshold > 0 {
		c.ShiftThreshold = lc.ShiftThreshold
	}
	return c
}

func engineConfig(ec config.EngineConfig) engine.Config {
	c := engine.DefaultConfig()
	if ec.ChunkSize > 0 {
		c.ChunkWords = ec.ChunkSize
	}
	if ec.ChunkDelay > 0 {
		c.ChunkDelay = ec.ChunkDelay
	}
	if ec.MaxArchived > 0 {
		c.HistoryLimit = ec.MaxArchived
	}
	return c
}

// storeConfig maps app config onto the behavior store's own config shape.
func storeConfig(cfg *config.Config) learning.StoreConfig {
	sc := learning.StoreConfig{Type: learning.StoreType(cfg.Learning.Store)}
	switch sc.Type {
	case learning.StoreTypeFile:
		sc.BaseDir = cfg.Learning.FilePath
	case learning.StoreTypeRedis:
		sc.RedisAddr = cfg.Redis.Addr
		sc.RedisPassword = cfg.Redis.Password
		sc.RedisDB = cfg.Redis.DB
	case learning.StoreTypeDatabase:
		sc.Driver = cfg.Database.Driver
		sc.DSN = gormDSN(cfg.Database)
	case "":
		sc.Type = learning.StoreTypeMemory
	}
	return sc
}

// gormDSN renders the DSN form each database backend expects. The migration
// runner uses URL-style DSNs instead; the two are not interchangeable.
func gormDSN(db config.DatabaseConfig) string {
	switch db.Driver {
	case "postgres":
		sslMode := db.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			db.Host, db.Port, db.User, db.Password, db.Name, sslMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			db.User, db.Password, db.Host, db.Port, db.Name)
	case "sqlite":
		// Empty path falls through to the store's shared-memory default.
		return db.Name
	default:
		return ""
	}
}
