// Package session serves one admitted websocket connection: it decodes
// client requests, runs them against the workspace instance and writes
// replies and room events back.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/auth"
	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/observability"
	"github.com/lzjever/mbos-devbox/internal/workspace"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Worst-case growth of a file body inside a JSON frame (\u00XX escapes).
	jsonEscapeFactor = 6
	frameEnvelope    = 64 << 10
)

type Config struct {
	// ReadLimit caps one inbound frame. It is raised to fit a fully escaped
	// save of the largest allowed file.
	ReadLimit  int64 `envconfig:"DEVBOX_WS_READ_LIMIT"`
	SendBuffer int   `envconfig:"DEVBOX_WS_SEND_BUFFER" default:"256"`
}

func readLimit(configured int64, maxFileBytes int) int64 {
	need := int64(maxFileBytes)*jsonEscapeFactor + frameEnvelope
	if configured < need {
		return need
	}
	return configured
}

// Session is one connection bound to one workspace and user.
type Session struct {
	id    string
	grant auth.Grant
	conn  *websocket.Conn
	cfg   Config
	log   *zap.Logger
	inst  *workspace.Instance

	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

var _ workspace.Member = (*Session)(nil)

func newSession(conn *websocket.Conn, grant auth.Grant, cfg Config, log *zap.Logger) *Session {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	id := core.NewID()
	return &Session{
		id:    id,
		grant: grant,
		conn:  conn,
		cfg:   cfg,
		log:   observability.SessionLogger(log, id, grant.WorkspaceID, grant.UserID),
		send:  make(chan []byte, cfg.SendBuffer),
		done:  make(chan struct{}),
	}
}

// Serve admits the connection into its workspace and runs it until the peer
// goes away. conn is closed on return.
func Serve(ctx context.Context, conn *websocket.Conn, grant auth.Grant, reg *workspace.Registry, cfg Config, log *zap.Logger) {
	cfg.ReadLimit = readLimit(cfg.ReadLimit, reg.MaxFileBytes())
	s := newSession(conn, grant, cfg, log)

	inst, err := reg.Admit(ctx, grant, s)
	if errors.Is(err, workspace.ErrOwnerAbsent) {
		observability.AdmissionsTotal.WithLabelValues("owner_absent").Inc()
		s.log.Info("session: owner not present, access disabled")
		s.refuse(workspace.EventDisableAccess, workspace.OwnerAbsentMessage)
		return
	}
	if err != nil {
		observability.AdmissionsTotal.WithLabelValues("error").Inc()
		s.log.Error("session: admit failed", zap.Error(err))
		s.refuse(workspace.EventError, errorNotice{Code: core.ErrInternal, Message: "internal error"})
		return
	}
	s.inst = inst
	defer inst.Leave(s)

	observability.AdmissionsTotal.WithLabelValues("admitted").Inc()
	observability.ActiveSessions.Inc()
	defer observability.ActiveSessions.Dec()
	inst.Audit(ctx, s.actor(), core.AuditSessionAdmit, map[string]bool{"owner": grant.IsOwner})
	s.log.Info("session: admitted", zap.Bool("owner", grant.IsOwner))

	go s.writePump()
	defer s.stop()

	if _, err := inst.Load(ctx); err != nil {
		s.log.Error("session: load workspace failed", zap.Error(err))
		s.emit(0, workspace.EventError, errorNotice{Code: core.ErrInternal, Message: "workspace could not be loaded"})
		return
	}
	tree, err := inst.Tree(ctx)
	if err != nil {
		s.log.Error("session: read tree failed", zap.Error(err))
		return
	}
	s.emit(0, workspace.EventLoaded, tree)

	s.readPump(ctx)
	s.log.Info("session: closed")
}

func (s *Session) actor() workspace.Actor {
	return workspace.Actor{UserID: s.grant.UserID, SessionID: s.id, Member: s}
}

// Deliver queues a room event without blocking.
func (s *Session) Deliver(ev workspace.Event) bool {
	return s.emit(0, ev.Name, ev.Data)
}

func (s *Session) emit(ack int64, event string, data any) bool {
	b, err := json.Marshal(outFrame{Event: event, Ack: ack, Data: data})
	if err != nil {
		s.log.Error("session: encode frame", zap.String("event", event), zap.Error(err))
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- b:
		return true
	default:
		// a peer that cannot keep up is dropped; it reconnects and is sent
		// loaded again instead of missing acks
		s.log.Warn("session: send buffer full, closing", zap.String("event", event))
		observability.SlowConsumerClosures.Inc()
		s.stop()
		return false
	}
}

func (s *Session) reply(ack int64, data any) {
	if ack > 0 {
		s.emit(ack, EventAck, data)
	}
}

func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// refuse writes one event and closes. Only valid before writePump starts.
func (s *Session) refuse(event string, data any) {
	defer s.conn.Close()
	b, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.log.Debug("session: refusal not delivered", zap.Error(err))
		return
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "access disabled"))
}

func (s *Session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.log.Warn("session: frame over read limit, closing", zap.Int64("limit", s.cfg.ReadLimit))
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("session: read error", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var f Frame
		if err := json.Unmarshal(message, &f); err != nil || f.Event == "" {
			s.emit(0, workspace.EventError, errorNotice{Code: core.ErrValidation, Message: "malformed message"})
			continue
		}
		s.dispatch(ctx, f)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Debug("session: write failed", zap.Error(err))
				s.stop()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.stop()
				return
			}
		case <-s.done:
			s.drain()
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes what is already queued so a closing peer still sees it.
func (s *Session) drain() {
	for {
		select {
		case message := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
