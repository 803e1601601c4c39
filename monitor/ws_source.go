package monitor

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// SocketSource adapts a websocket connection into a line source for remote
// operator consoles. Each text message is one operator line.
type SocketSource struct {
	conn   *websocket.Conn
	logger *zap.Logger
}

// NewSocketSource wraps an established websocket connection.
func NewSocketSource(conn *websocket.Conn, logger *zap.Logger) *SocketSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocketSource{
		conn:   conn,
		logger: logger.With(zap.String("component", "ws_line_source")),
	}
}

// Dial connects to a remote operator console and wraps it as a line source.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*SocketSource, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return NewSocketSource(conn, logger), nil
}

// ReadLine blocks for the next text message. Binary frames are skipped.
func (s *SocketSource) ReadLine(ctx context.Context) (string, error) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			return "", fmt.Errorf("websocket read: %w", err)
		}
		if typ != websocket.MessageText {
			s.logger.Debug("skipping non-text frame")
			continue
		}
		return string(data), nil
	}
}

// Close closes the underlying connection.
func (s *SocketSource) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "monitor detached")
}

var _ LineSource = (*SocketSource)(nil)
