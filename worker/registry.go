package worker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

// Entry is one registered worker plus its immutable profile.
type Entry struct {
	Worker       types.Worker
	Profile      *types.WorkerProfile
	Role         string
	RegisteredAt time.Time
}

// roster is the ordered worker set of one session.
type roster struct {
	order   []string
	entries map[string]*Entry
}

// Registry stores per-session worker rosters. All methods take the session id
// explicitly; there is no ambient current session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*roster
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*roster),
		logger:   logger.With(zap.String("component", "worker_registry")),
	}
}

// Register adds a worker to a session's roster. The profile is resolved in
// precedence order: the explicit argument, the worker's own Profiled
// declaration, then derivation from name and role keywords. Registering a
// name twice in one session is an error.
func (r *Registry) Register(sessionID string, w types.Worker, role string, profile *types.WorkerProfile) error {
	if w == nil {
		return fmt.Errorf("worker is nil")
	}
	name := w.Name()
	if name == "" {
		return fmt.Errorf("worker name is empty")
	}

	if profile == nil {
		if p, ok := w.(types.Profiled); ok {
			profile = p.Profile()
		}
	}
	if profile == nil {
		profile = DeriveProfile(name, role)
	}
	profile = profile.Clone()
	profile.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	ros, ok := r.sessions[sessionID]
	if !ok {
		ros = &roster{entries: make(map[string]*Entry)}
		r.sessions[sessionID] = ros
	}
	if _, exists := ros.entries[name]; exists {
		return fmt.Errorf("worker %q already registered in session %s", name, sessionID)
	}

	ros.order = append(ros.order, name)
	ros.entries[name] = &Entry{
		Worker:       w,
		Profile:      profile,
		Role:         role,
		RegisteredAt: time.Now(),
	}

	r.logger.Info("worker registered",
		zap.String("session_id", sessionID),
		zap.String("worker", name),
		zap.Strings("primary_skills", profile.PrimarySkills),
	)
	return nil
}

// Unregister removes a worker from a session's roster.
func (r *Registry) Unregister(sessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ros, ok := r.sessions[sessionID]
	if !ok {
		return types.NewError(types.ErrWorkerNotFound,
			fmt.Sprintf("no roster for session %s", sessionID))
	}
	if _, exists := ros.entries[name]; !exists {
		return types.NewError(types.ErrWorkerNotFound,
			fmt.Sprintf("worker %q not in session %s", name, sessionID))
	}

	delete(ros.entries, name)
	for i, n := range ros.order {
		if n == name {
			ros.order = append(ros.order[:i], ros.order[i+1:]...)
			break
		}
	}
	if len(ros.order) == 0 {
		delete(r.sessions, sessionID)
	}
	return nil
}

// Get returns one worker entry.
func (r *Registry) Get(sessionID, name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ros, ok := r.sessions[sessionID]; ok {
		if e, exists := ros.entries[name]; exists {
			return e, nil
		}
	}
	return nil, types.NewError(types.ErrWorkerNotFound,
		fmt.Sprintf("worker %q not in session %s", name, sessionID))
}

// List returns a session's entries in registration order.
func (r *Registry) List(sessionID string) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ros, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]*Entry, 0, len(ros.order))
	for _, name := range ros.order {
		out = append(out, ros.entries[name])
	}
	return out
}

// Names returns a session's worker names in registration order.
func (r *Registry) Names(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ros, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]string(nil), ros.order...)
}

// Profiles returns copies of a session's profiles in registration order.
func (r *Registry) Profiles(sessionID string) []*types.WorkerProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ros, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]*types.WorkerProfile, 0, len(ros.order))
	for _, name := range ros.order {
		out = append(out, ros.entries[name].Profile.Clone())
	}
	return out
}

// Count returns the roster size of a session.
func (r *Registry) Count(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ros, ok := r.sessions[sessionID]; ok {
		return len(ros.order)
	}
	return 0
}

// DropSession removes a session's entire roster.
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}
