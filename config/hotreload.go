// Configuration hot reload.
//
// Reloads the configuration file on change, validates the candidate before
// applying it, and notifies subscribers with the old and new values. Which
// sections take effect live is up to the subscriber; the server applies
// routing weights and log level without a restart, while connection-level
// sections only change on process restart.
package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback runs after a new configuration is applied.
type ReloadCallback func(oldConfig, newConfig *Config)

// ConfigChange records one applied or rejected reload.
type ConfigChange struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Paths     []string  `json:"paths,omitempty"`
	Applied   bool      `json:"applied"`
	Error     string    `json:"error,omitempty"`
}

// hotSections are the top-level config sections safe to swap at runtime.
var hotSections = map[string]struct{}{
	"Routing":  {},
	"Predict":  {},
	"Learning": {},
	"Engine":   {},
	"Log":      {},
}

// HotReloadManager watches a config file and applies safe changes live.
type HotReloadManager struct {
	mu sync.RWMutex

	current    *Config
	configPath string
	envPrefix  string

	watcher   *FileWatcher
	callbacks []ReloadCallback
	changeLog []ConfigChange
	maxLog    int

	logger *zap.Logger

	running bool
	cancel  context.CancelFunc
}

// NewHotReloadManager creates a manager for the given file-backed config.
func NewHotReloadManager(cfg *Config, configPath string, logger *zap.Logger) *HotReloadManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HotReloadManager{
		current:    cfg,
		configPath: configPath,
		envPrefix:  "SMALLTALK",
		maxLog:     10,
		logger:     logger.With(zap.String("component", "config_hotreload")),
	}
}

// Current returns the active configuration.
func (m *HotReloadManager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnReload registers a callback invoked after each applied reload.
func (m *HotReloadManager) OnReload(cb ReloadCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Start begins watching the config file.
func (m *HotReloadManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("hot reload already running")
	}
	if m.configPath == "" {
		m.mu.Unlock()
		return fmt.Errorf("no config path to watch")
	}

	watcher, err := NewFileWatcher([]string{m.configPath}, WithWatcherLogger(m.logger))
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	m.watcher = watcher
	m.running = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	watcher.OnChange(func(event FileEvent) {
		if event.Op != FileOpWrite && event.Op != FileOpCreate {
			return
		}
		if err := m.Reload(); err != nil {
			m.logger.Warn("config reload rejected", zap.Error(err))
		}
	})

	return watcher.Start(ctx)
}

// Stop stops watching.
func (m *HotReloadManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	if m.cancel != nil {
		m.cancel()
	}
	if m.watcher != nil {
		_ = m.watcher.Stop()
	}
}

// Reload re-reads the config file and applies hot-reloadable sections. The
// candidate is validated first; a failing candidate leaves the current config
// untouched.
func (m *HotReloadManager) Reload() error {
	candidate, err := NewLoader().
		WithConfigPath(m.configPath).
		WithEnvPrefix(m.envPrefix).
		Load()
	if err != nil {
		m.record(ConfigChange{Timestamp: time.Now(), Source: "file", Error: err.Error()})
		return err
	}
	if err := candidate.Validate(); err != nil {
		m.record(ConfigChange{Timestamp: time.Now(), Source: "file", Error: err.Error()})
		return err
	}

	m.mu.Lock()
	old := m.current
	merged, changed := mergeHotSections(old, candidate)
	m.current = merged
	callbacks := make([]ReloadCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	m.record(ConfigChange{
		Timestamp: time.Now(),
		Source:    "file",
		Paths:     changed,
		Applied:   len(changed) > 0,
	})

	if len(changed) == 0 {
		return nil
	}

	m.logger.Info("configuration reloaded", zap.Strings("sections", changed))
	for _, cb := range callbacks {
		cb(old, merged)
	}
	return nil
}

// ChangeLog returns the recent reload history, newest last.
func (m *HotReloadManager) ChangeLog() []ConfigChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ConfigChange, len(m.changeLog))
	copy(out, m.changeLog)
	return out
}

func (m *HotReloadManager) record(change ConfigChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeLog = append(m.changeLog, change)
	if len(m.changeLog) > m.maxLog {
		m.changeLog = m.changeLog[len(m.changeLog)-m.maxLog:]
	}
}

// mergeHotSections copies hot-reloadable sections from candidate onto a copy
// of current and reports which sections differed.
func mergeHotSections(current, candidate *Config) (*Config, []string) {
	merged := *current
	var changed []string

	mv := reflect.ValueOf(&merged).Elem()
	cv := reflect.ValueOf(candidate).Elem()
	t := mv.Type()

	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Name
		if _, hot := hotSections[name]; !hot {
			continue
		}
		if !reflect.DeepEqual(mv.Field(i).Interface(), cv.Field(i).Interface()) {
			mv.Field(i).Set(cv.Field(i))
			changed = append(changed, name)
		}
	}

	return &merged, changed
}
