package monitor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

// LineSource yields operator input lines until io.EOF.
type LineSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// ReaderSource scans newline-delimited input, such as stdin.
type ReaderSource struct {
	scanner *bufio.Scanner
}

// NewReaderSource wraps a reader as a line source.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{scanner: bufio.NewScanner(r)}
}

func (s *ReaderSource) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

// ChanSource feeds lines from a channel, the in-process wiring used by the
// orchestrator and by tests.
type ChanSource struct {
	lines <-chan string
}

// NewChanSource wraps a channel as a line source. Closing the channel ends
// the source.
func NewChanSource(lines <-chan string) *ChanSource {
	return &ChanSource{lines: lines}
}

func (s *ChanSource) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Monitor reads operator lines for one session and turns them into
// interruptions or contextual input. Interruption delivery never blocks;
// a full buffer drops the line with a warning.
type Monitor struct {
	mu      sync.Mutex
	session string
	cancel  context.CancelFunc
	counts  map[types.InterruptionType]int
	total   int

	interrupts chan *types.Interruption
	contextual chan string

	logger *zap.Logger
}

// NewMonitor creates an idle monitor.
func NewMonitor(logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		counts:     make(map[types.InterruptionType]int),
		interrupts: make(chan *types.Interruption, 64),
		contextual: make(chan string, 64),
		logger:     logger.With(zap.String("component", "activity_monitor")),
	}
}

// Interruptions returns the stream of classified interruptions.
func (m *Monitor) Interruptions() <-chan *types.Interruption {
	return m.interrupts
}

// Contextual returns the stream of non-interruption operator lines.
func (m *Monitor) Contextual() <-chan string {
	return m.contextual
}

// Watch binds the monitor to a session and starts consuming lines. A
// monitor observes one session at a time; binding while one is active is
// a no-op with a warning.
func (m *Monitor) Watch(ctx context.Context, sessionID string, lines LineSource) {
	m.mu.Lock()
	if m.session != "" {
		active := m.session
		m.mu.Unlock()
		m.logger.Warn("already monitoring a session, ignoring bind",
			zap.String("active_session", active),
			zap.String("requested_session", sessionID))
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	m.session = sessionID
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("monitoring session", zap.String("session_id", sessionID))

	go m.run(watchCtx, sessionID, lines)
}

// Stop ends monitoring for the given session. A session the monitor is not
// watching is logged and ignored.
func (m *Monitor) Stop(sessionID string) {
	m.mu.Lock()
	if m.session != sessionID {
		active := m.session
		m.mu.Unlock()
		m.logger.Warn("stop requested for a session not being monitored",
			zap.String("active_session", active),
			zap.String("requested_session", sessionID))
		return
	}
	cancel := m.cancel
	m.session = ""
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Inject feeds one operator line directly, bypassing the bound source.
// Lines for a session the monitor is not watching are logged and dropped.
func (m *Monitor) Inject(sessionID, line string) {
	m.mu.Lock()
	active := m.session
	m.mu.Unlock()
	if active != sessionID {
		m.logger.Warn("line for a session not being monitored, dropped",
			zap.String("active_session", active),
			zap.String("requested_session", sessionID))
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	m.handle(sessionID, line)
}

// Session returns the session currently observed, empty when idle.
func (m *Monitor) Session() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Counts returns the per-type interruption tallies seen so far.
func (m *Monitor) Counts() map[types.InterruptionType]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[types.InterruptionType]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

// Total returns the total interruption count.
func (m *Monitor) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

func (m *Monitor) run(ctx context.Context, sessionID string, lines LineSource) {
	for {
		line, err := lines.ReadLine(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				m.logger.Warn("input source failed",
					zap.String("session_id", sessionID),
					zap.Error(err))
			}
			m.release(sessionID)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m.handle(sessionID, line)
	}
}

func (m *Monitor) handle(sessionID, line string) {
	// A source goroutine may outlive its binding when its read cannot be
	// canceled; lines from a stale binding are dropped.
	m.mu.Lock()
	bound := m.session == sessionID
	m.mu.Unlock()
	if !bound {
		return
	}

	match, ok := Classify(line)
	if !ok {
		select {
		case m.contextual <- line:
		default:
			m.logger.Warn("contextual buffer full, dropping line",
				zap.String("session_id", sessionID))
		}
		return
	}

	interruption := &types.Interruption{
		SessionID:    sessionID,
		Type:         match.Type,
		Message:      line,
		Timestamp:    time.Now(),
		TargetWorker: match.TargetWorker,
		Redirection:  match.Redirection,
	}

	m.mu.Lock()
	m.counts[match.Type]++
	m.total++
	m.mu.Unlock()

	m.logger.Info("operator interruption",
		zap.String("session_id", sessionID),
		zap.String("type", string(match.Type)),
		zap.String("target", match.TargetWorker))

	select {
	case m.interrupts <- interruption:
	default:
		m.logger.Warn("interruption buffer full, dropping",
			zap.String("session_id", sessionID),
			zap.String("type", string(match.Type)))
	}
}

// release clears the binding after the source ends on its own.
func (m *Monitor) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == sessionID {
		m.session = ""
		m.cancel = nil
	}
}
