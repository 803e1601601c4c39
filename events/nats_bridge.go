package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// BridgeConfig controls the NATS republisher.
type BridgeConfig struct {
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}

// DefaultBridgeConfig returns the default bridge configuration.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{SubjectPrefix: "smalltalk.events"}
}

// Bridge republishes bus events onto a NATS subject tree named
// <prefix>.<session>.<type>. Publishing is fire and forget; a failed publish
// is logged and the event dropped, never retried.
type Bridge struct {
	conn   *nats.Conn
	prefix string
	stop   func()
	done   chan struct{}
	logger *zap.Logger
}

// NewBridge attaches a republisher to bus. Close detaches it again.
func NewBridge(conn *nats.Conn, bus *Bus, config BridgeConfig, logger *zap.Logger) (*Bridge, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection is nil")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	prefix := strings.Trim(config.SubjectPrefix, ".")
	if prefix == "" {
		prefix = DefaultBridgeConfig().SubjectPrefix
	}

	ch, unsub := bus.Subscribe()
	b := &Bridge{
		conn:   conn,
		prefix: prefix,
		stop:   unsub,
		done:   make(chan struct{}),
		logger: logger.With(zap.String("component", "nats_bridge")),
	}
	go b.pump(ch)

	b.logger.Info("nats bridge attached", zap.String("subject_prefix", prefix))
	return b, nil
}

func (b *Bridge) pump(ch <-chan Event) {
	defer close(b.done)
	for event := range ch {
		data, err := json.Marshal(event)
		if err != nil {
			b.logger.Warn("event not serializable",
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
			continue
		}
		if err := b.conn.Publish(b.subjectFor(event), data); err != nil {
			b.logger.Warn("nats publish failed",
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
		}
	}
}

// subjectFor maps an event to its subject. Sessionless events publish under
// a "global" token since NATS subjects cannot contain empty tokens.
func (b *Bridge) subjectFor(event Event) string {
	session := sanitizeToken(event.SessionID)
	if session == "" {
		session = "global"
	}
	return b.prefix + "." + session + "." + string(event.Type)
}

// sanitizeToken replaces characters reserved by NATS subject syntax.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '*', '>':
			return '-'
		}
		return r
	}, s)
}

// Close stops republishing and waits for in-flight events to drain.
func (b *Bridge) Close() {
	b.stop()
	<-b.done
}
