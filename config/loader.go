// =============================================================================
// Configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment variable override.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SMALLTALK").
//	    Load()
//
// Precedence: defaults -> YAML file -> environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the routing pipeline.
type Config struct {
	// Server configures the operational HTTP surface.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Routing configures skills matching and pattern selection.
	Routing RoutingConfig `yaml:"routing" env:"ROUTING"`

	// Predict configures the predictive router.
	Predict PredictConfig `yaml:"predict" env:"PREDICT"`

	// Learning configures the feedback learner and its behavior store.
	Learning LearningConfig `yaml:"learning" env:"LEARNING"`

	// Engine configures execution streaming.
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Events configures the event bus and optional NATS bridge.
	Events EventsConfig `yaml:"events" env:"EVENTS"`

	// Redis configures the shared Redis client.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database configures the relational behavior store.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// LLM configures the text-generation provider.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the operational HTTP endpoints.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// JWTSecret enables bearer-token auth on mutating endpoints when set.
	JWTSecret      string  `yaml:"jwt_secret" env:"JWT_SECRET"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// RoutingConfig holds the tunable scoring mix and fallback behavior.
type RoutingConfig struct {
	// Sub-score weights. Normalized at load time if they do not sum to 1.
	PrimarySkillWeight  float64 `yaml:"primary_skill_weight" env:"PRIMARY_SKILL_WEIGHT"`
	DomainWeight        float64 `yaml:"domain_weight" env:"DOMAIN_WEIGHT"`
	TaskTypeWeight      float64 `yaml:"task_type_weight" env:"TASK_TYPE_WEIGHT"`
	CollaborationWeight float64 `yaml:"collaboration_weight" env:"COLLABORATION_WEIGHT"`

	// FallbackConfidence is assigned to deterministic fallback results.
	FallbackConfidence float64 `yaml:"fallback_confidence" env:"FALLBACK_CONFIDENCE"`

	// AdaptationGate is the minimum confidence for applying a plan adaptation.
	AdaptationGate float64 `yaml:"adaptation_gate" env:"ADAPTATION_GATE"`

	// TopWorkers caps how many ranked workers feed pattern selection.
	TopWorkers int `yaml:"top_workers" env:"TOP_WORKERS"`

	// OpportunityConcurrency bounds concurrent pair/triple analyses.
	OpportunityConcurrency int `yaml:"opportunity_concurrency" env:"OPPORTUNITY_CONCURRENCY"`
}

// PredictConfig configures the predictive router.
type PredictConfig struct {
	// Alpha is the EMA smoothing factor, kept within [0.05, 0.5].
	Alpha float64 `yaml:"alpha" env:"ALPHA"`
	// SingleExpertThreshold promotes a single-expert alternative above it.
	SingleExpertThreshold float64 `yaml:"single_expert_threshold" env:"SINGLE_EXPERT_THRESHOLD"`
	// ComplexityThreshold promotes a debate alternative above it.
	ComplexityThreshold float64 `yaml:"complexity_threshold" env:"COMPLEXITY_THRESHOLD"`
	// TokenModel selects the tiktoken encoding for feature extraction.
	TokenModel string `yaml:"token_model" env:"TOKEN_MODEL"`
	// MaxAlternatives caps alternative routes per prediction.
	MaxAlternatives int `yaml:"max_alternatives" env:"MAX_ALTERNATIVES"`
}

// LearningConfig configures the feedback learner.
type LearningConfig struct {
	// Store selects the behavior store backend: memory, file, redis, database.
	Store string `yaml:"store" env:"STORE"`
	// FilePath backs the file store.
	FilePath string `yaml:"file_path" env:"FILE_PATH"`
	// PreferenceNudge is the per-event preference delta.
	PreferenceNudge float64 `yaml:"preference_nudge" env:"PREFERENCE_NUDGE"`
	// MaxKeywords bounds the satisfaction/frustration lists.
	MaxKeywords int `yaml:"max_keywords" env:"MAX_KEYWORDS"`
	// PatternThreshold is the occurrence count that makes a pattern actionable.
	PatternThreshold int `yaml:"pattern_threshold" env:"PATTERN_THRESHOLD"`
	// RecentWindow is the sentiment window for shift detection.
	RecentWindow int `yaml:"recent_window" env:"RECENT_WINDOW"`
	// ShiftThreshold is the recent-vs-all-time divergence that emits an insight.
	ShiftThreshold float64 `yaml:"shift_threshold" env:"SHIFT_THRESHOLD"`
}

// EngineConfig configures execution streaming.
type EngineConfig struct {
	// ChunkSize is the streamed chunk length in words.
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// ChunkDelay paces chunk emission; interruption checks run per chunk.
	ChunkDelay time.Duration `yaml:"chunk_delay" env:"CHUNK_DELAY"`
	// MaxArchived bounds the per-engine archive of finished runs.
	MaxArchived int `yaml:"max_archived" env:"MAX_ARCHIVED"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	// BufferSize is the per-subscriber channel depth; full buffers drop.
	BufferSize int        `yaml:"buffer_size" env:"BUFFER_SIZE"`
	NATS       NATSConfig `yaml:"nats" env:"NATS"`
}

// NATSConfig configures the optional NATS event bridge.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url" env:"URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	// Driver selects the backend: postgres, mysql, sqlite.
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LLMConfig configures the text-generation provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries  int           `yaml:"max_retries" env:"MAX_RETRIES"`
	// RateLimitRPS throttles outbound provider calls. Zero disables.
	RateLimitRPS float64     `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	Cache        CacheConfig `yaml:"cache" env:"CACHE"`
}

// CacheConfig configures the completion cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	LocalTTL time.Duration `yaml:"local_ttl" env:"LOCAL_TTL"`
	RedisTTL time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
	UseRedis bool          `yaml:"use_redis" env:"USE_REDIS"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads configuration using the builder pattern.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SMALLTALK",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the configuration file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a configuration validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration.
// Precedence: defaults -> YAML file -> environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.Routing.normalizeWeights()

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file. A missing file is not an
// error; defaults apply.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overrides configuration from environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks struct fields recursively, matching env tags.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue parses value into the field according to its kind.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads the configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// normalizeWeights rescales the sub-score weights to sum to 1 when they are
// positive but off-balance, so a partially overridden mix stays a mix.
func (r *RoutingConfig) normalizeWeights() {
	sum := r.PrimarySkillWeight + r.DomainWeight + r.TaskTypeWeight + r.CollaborationWeight
	if sum <= 0 {
		def := DefaultRoutingConfig()
		*r = def
		return
	}
	r.PrimarySkillWeight /= sum
	r.DomainWeight /= sum
	r.TaskTypeWeight /= sum
	r.CollaborationWeight /= sum
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Routing.FallbackConfidence < 0 || c.Routing.FallbackConfidence > 1 {
		errs = append(errs, "fallback_confidence must be within [0,1]")
	}
	if c.Routing.AdaptationGate < 0 || c.Routing.AdaptationGate > 1 {
		errs = append(errs, "adaptation_gate must be within [0,1]")
	}
	if c.Predict.Alpha < 0.05 || c.Predict.Alpha > 0.5 {
		errs = append(errs, "predict alpha must be within [0.05, 0.5]")
	}
	if c.Learning.MaxKeywords <= 0 {
		errs = append(errs, "max_keywords must be positive")
	}
	if c.Engine.ChunkSize <= 0 {
		errs = append(errs, "chunk_size must be positive")
	}
	switch c.Learning.Store {
	case "memory", "file", "redis", "database":
	default:
		errs = append(errs, fmt.Sprintf("unknown learning store %q", c.Learning.Store))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the database connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
