// =============================================================================
// Default configuration
// =============================================================================
// Sensible defaults for every configuration section.
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Routing:   DefaultRoutingConfig(),
		Predict:   DefaultPredictConfig(),
		Learning:  DefaultLearningConfig(),
		Engine:    DefaultEngineConfig(),
		Events:    DefaultEventsConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultRoutingConfig returns the default scoring mix.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		PrimarySkillWeight:     0.40,
		DomainWeight:           0.25,
		TaskTypeWeight:         0.20,
		CollaborationWeight:    0.15,
		FallbackConfidence:     0.6,
		AdaptationGate:         0.7,
		TopWorkers:             5,
		OpportunityConcurrency: 4,
	}
}

// DefaultPredictConfig returns the default prediction configuration.
func DefaultPredictConfig() PredictConfig {
	return PredictConfig{
		Alpha:                 0.2,
		SingleExpertThreshold: 0.8,
		ComplexityThreshold:   0.7,
		TokenModel:            "gpt-4",
		MaxAlternatives:       3,
	}
}

// DefaultLearningConfig returns the default learning configuration.
func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		Store:            "memory",
		FilePath:         "smalltalk-behavior.json",
		PreferenceNudge:  0.05,
		MaxKeywords:      5,
		PatternThreshold: 3,
		RecentWindow:     20,
		ShiftThreshold:   0.3,
	}
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ChunkSize:   48,
		ChunkDelay:  20 * time.Millisecond,
		MaxArchived: 100,
	}
}

// DefaultEventsConfig returns the default events configuration.
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		BufferSize: 256,
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			SubjectPrefix: "smalltalk",
		},
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "smalltalk",
		Password:        "",
		Name:            "smalltalk.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLLMConfig returns the default provider configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:     "openai",
		APIKey:       "",
		BaseURL:      "",
		Model:        "gpt-4",
		Temperature:  0.3,
		MaxTokens:    1024,
		Timeout:      2 * time.Minute,
		MaxRetries:   3,
		RateLimitRPS: 0,
		Cache: CacheConfig{
			Enabled:  true,
			LocalTTL: 5 * time.Minute,
			RedisTTL: time.Hour,
			UseRedis: false,
		},
	}
}

// DefaultLogConfig returns the default log configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "smalltalk",
		SampleRate:   0.1,
	}
}
