package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/orchestrator"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

// outQueueCap bounds the per-connection output queue. Producers that stay
// blocked past the enqueue deadline trigger a 1011 close.
const outQueueCap = 64

// writeTimeout bounds a single frame write on the socket.
const writeTimeout = 10 * time.Second

var (
	errDuplicateRequest = stderrors.New("request_id already in flight")
	errRequestLimit     = stderrors.New("session request limit reached")
)

// session is one WebSocket connection. The read loop parses and dispatches
// client frames; the write pump owns every socket write, including pings
// and the close frame. Request goroutines and the read loop never touch
// the socket write side directly, they enqueue into out.
type session struct {
	id     string
	userID string
	conn   *websocket.Conn
	srv    *Server

	ctx    context.Context
	cancel context.CancelFunc
	out    chan protocol.ServerEnvelope

	writerDone chan struct{}

	mu        sync.Mutex
	requests  map[string]context.CancelFunc
	closeCode int
	closeText string
}

func newSession(srv *Server, id, userID string, conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(srv.ctx)
	return &session{
		id:         id,
		userID:     userID,
		conn:       conn,
		srv:        srv,
		ctx:        ctx,
		cancel:     cancel,
		out:        make(chan protocol.ServerEnvelope, outQueueCap),
		writerDone: make(chan struct{}),
		requests:   make(map[string]context.CancelFunc),
	}
}

// run drives the connection to completion. It returns once the socket is
// closed and the write pump has exited.
func (s *session) run() {
	defer s.teardown()
	go s.writePump()
	s.readLoop()
}

func (s *session) teardown() {
	// Request contexts derive from the session context, so cancelling it
	// stops every in-flight request as well as the write pump.
	s.cancel()
	<-s.writerDone
	_ = s.conn.Close()
	s.srv.sessions.remove(s)
	s.srv.deps.Metrics.ConnectionClosed(context.Background())
	s.srv.deps.Gauges.SetSessionsActive(s.srv.sessions.len())
	s.srv.deps.Logger.Info("session closed", "session_id", s.id)
}

// shutdown closes the connection with the given status code. Safe to call
// from any goroutine; the first caller's code wins.
func (s *session) shutdown(code int, text string) {
	s.setClose(code, text)
	s.cancel()
}

func (s *session) setClose(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeCode == 0 {
		s.closeCode = code
		s.closeText = text
	}
}

func (s *session) closeStatus() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeCode == 0 {
		return websocket.CloseNormalClosure, ""
	}
	return s.closeCode, s.closeText
}

// enqueue submits an event for delivery. It blocks up to the enqueue
// deadline when the queue is full; past that the connection is closed with
// 1011 and the event is dropped. Events for a closed session are dropped
// silently.
func (s *session) enqueue(env protocol.ServerEnvelope) {
	select {
	case s.out <- env:
		return
	case <-s.ctx.Done():
		return
	default:
	}
	timer := time.NewTimer(s.srv.cfg.EnqueueTimeout)
	defer timer.Stop()
	select {
	case s.out <- env:
	case <-s.ctx.Done():
	case <-timer.C:
		s.srv.deps.Logger.Warn("output queue stalled, closing connection",
			"session_id", s.id, "dropped_type", env.Type)
		s.srv.deps.Metrics.QueueOverflow(s.ctx)
		s.shutdown(websocket.CloseInternalServerErr, "output queue overflow")
	}
}

// writePump serializes all socket writes: queued events, keepalive pings,
// and the final close frame. It closes the socket on exit so a blocked
// read loop unwinds promptly.
func (s *session) writePump() {
	defer close(s.writerDone)
	ticker := time.NewTicker(s.srv.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case env := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				s.cancel()
				_ = s.conn.Close()
				return
			}
			s.srv.deps.Metrics.Message(s.ctx, "out", env.Type)
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.cancel()
				_ = s.conn.Close()
				return
			}
		case <-s.ctx.Done():
			code, text := s.closeStatus()
			msg := websocket.FormatCloseMessage(code, text)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			_ = s.conn.Close()
			return
		}
	}
}

// readLoop consumes client frames until the socket closes or idles out.
// The read deadline is refreshed per data frame, so control traffic alone
// does not keep an idle session alive.
func (s *session) readLoop() {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.srv.cfg.IdleTimeout))
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			var nerr net.Error
			if stderrors.As(err, &nerr) && nerr.Timeout() {
				s.srv.deps.Logger.Info("session idle, closing", "session_id", s.id)
				s.shutdown(websocket.CloseNormalClosure, "idle timeout")
			}
			return
		}
		if !s.dispatch(frame) {
			return
		}
	}
}

// dispatch routes one frame. It returns false when the connection must
// close; the close code has already been recorded by then.
func (s *session) dispatch(frame []byte) bool {
	env, err := protocol.ParseEnvelope(frame)
	if err != nil {
		s.srv.deps.Metrics.Message(s.ctx, "in", "invalid")
		s.srv.deps.Logger.Warn("malformed frame", "session_id", s.id, "error", err)
		s.shutdown(websocket.ClosePolicyViolation, "malformed frame")
		return false
	}
	s.srv.deps.Metrics.Message(s.ctx, "in", env.Type)

	// An unrecognized type answers with an error event and keeps the
	// connection; a recognized type missing its envelope fields is an
	// unaddressable frame and closes it.
	if !protocol.KnownType(env.Type) {
		s.enqueue(protocol.NewError(env.RequestID, 1, string(errors.CodeValidation),
			fmt.Sprintf("unknown message type %q", env.Type), ""))
		return true
	}
	if err := protocol.ValidateEnvelope(env); err != nil {
		s.srv.deps.Logger.Warn("invalid envelope", "session_id", s.id, "type", env.Type, "error", err)
		s.shutdown(websocket.ClosePolicyViolation, "missing envelope fields")
		return false
	}

	switch env.Type {
	case protocol.TypePing:
		s.enqueue(protocol.NewPong())
	case protocol.TypeCancel:
		s.cancelRequest(env.RequestID)
	case protocol.TypeDiagramRequest:
		s.startRequest(env)
	}
	return true
}

func (s *session) cancelRequest(requestID string) {
	s.mu.Lock()
	cancel := s.requests[requestID]
	s.mu.Unlock()
	if cancel == nil {
		// Unknown or already finished; cancel is idempotent.
		return
	}
	s.srv.deps.Logger.Info("cancel requested", "session_id", s.id, "request_id", requestID)
	cancel()
}

// startRequest validates the payload shape, claims a request slot, and
// hands the work to the orchestrator on its own goroutine.
func (s *session) startRequest(env *protocol.ClientEnvelope) {
	data, err := protocol.DecodeRequestData(env)
	if err != nil {
		s.enqueue(protocol.NewError(env.RequestID, 1, string(errors.CodeValidation),
			"malformed diagram_request data", err.Error()))
		return
	}

	reqCtx, cancel := context.WithCancel(s.ctx)
	if err := s.registerRequest(env.RequestID, cancel); err != nil {
		cancel()
		s.enqueue(protocol.NewError(env.RequestID, 1, string(errors.CodeValidation), err.Error(), ""))
		return
	}

	s.srv.requestStarted()
	s.srv.wg.Add(1)
	go func() {
		defer s.srv.wg.Done()
		defer s.finishRequest(env.RequestID, cancel)
		req := orchestrator.Request{
			RequestID: env.RequestID,
			SessionID: s.id,
			UserID:    s.userID,
			Data:      data,
		}
		if err := s.srv.deps.Orchestrator.Process(reqCtx, req, s.enqueue); err != nil {
			s.srv.deps.Logger.Debug("request finished with error",
				"session_id", s.id, "request_id", env.RequestID, "error", err)
		}
	}()
}

// registerRequest claims the request slot. Rejected requests never enter
// the table, so a later cancel for them is a no-op.
func (s *session) registerRequest(id string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.requests[id]; dup {
		return errDuplicateRequest
	}
	if max := s.srv.cfg.MaxRequestsPerSession; max > 0 && len(s.requests) >= max {
		return errRequestLimit
	}
	s.requests[id] = cancel
	return nil
}

func (s *session) finishRequest(id string, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	delete(s.requests, id)
	s.mu.Unlock()
	s.srv.requestFinished()
}
