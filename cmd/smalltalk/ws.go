package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/monitor"
)

// hangupSource cancels the handler context when the socket's read side
// fails, so a disconnected client does not leave the event-forwarding loop
// parked until its next write.
type hangupSource struct {
	src    *monitor.SocketSource
	cancel context.CancelFunc
}

func (h *hangupSource) ReadLine(ctx context.Context) (string, error) {
	line, err := h.src.ReadLine(ctx)
	if err != nil {
		h.cancel()
	}
	return line, err
}

// handleWS upgrades the connection and splits it two ways: inbound text
// frames become operator lines for the session's activity monitor, outbound
// frames mirror the session's event stream. The session is picked by the
// "session" query parameter.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = "default"
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	src := monitor.NewSocketSource(conn, s.logger)
	defer src.Close()

	// The orchestrator owns the read side; this handler owns the write side.
	// coder/websocket allows exactly one concurrent reader and one writer.
	// A read failure means the client is gone, so it also ends the write loop.
	s.orch.AttachOperator(ctx, sessionID, &hangupSource{src: src, cancel: cancel})

	ch, unsub := s.orch.Events().Subscribe()
	defer unsub()

	s.logger.Info("operator attached",
		zap.String("session_id", sessionID),
		zap.String("remote_addr", r.RemoteAddr))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			// Session-scoped events go to their session only; events without
			// a session id are broadcast.
			if ev.SessionID != "" && ev.SessionID != sessionID {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		}
	}
}
