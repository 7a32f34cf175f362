package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/fitplan/internal/hub"
)

// Control message types sent by clients.
const (
	MsgJoinUpload      = "join-upload-topic"
	MsgLeaveUpload     = "leave-upload-topic"
	MsgJoinGeneration  = "join-generation-topic"
	MsgLeaveGeneration = "leave-generation-topic"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMsgSize = 4096
)

// ControlMessage is a client request to join or leave a job's events.
// Payload is the bare upload or generation job id.
type ControlMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// wsConn adapts a WebSocket connection to hub.Conn. The hub's writer
// goroutine is the only caller of Send.
type wsConn struct {
	id string
	ws *websocket.Conn
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(msg hub.Message) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return
	}

	conn := &wsConn{id: uuid.NewString(), ws: ws}
	s.Metrics.ConnectionOpened()
	s.logger.Debug("websocket connected", "conn_id", conn.id, "remote", r.RemoteAddr)

	done := make(chan struct{})
	defer func() {
		close(done)
		s.Hub.Disconnect(conn)
		_ = ws.Close()
		s.Metrics.ConnectionClosed()
		s.logger.Debug("websocket disconnected", "conn_id", conn.id)
	}()

	go keepAlive(ws, done)
	s.readLoop(context.WithoutCancel(r.Context()), conn)
}

// readLoop applies control messages until the client goes away.
func (s *Server) readLoop(ctx context.Context, conn *wsConn) {
	ws := conn.ws
	ws.SetReadLimit(maxMsgSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ControlMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", "conn_id", conn.id, "error", err)
			}
			return
		}
		s.applyControl(ctx, conn, msg)
	}
}

func (s *Server) applyControl(ctx context.Context, conn hub.Conn, msg ControlMessage) {
	if msg.Payload == "" {
		s.logger.Debug("control message without id ignored", "conn_id", conn.ID(), "type", msg.Type)
		return
	}

	switch msg.Type {
	case MsgJoinUpload:
		s.Hub.Subscribe(ctx, conn, hub.Topic(hub.KindUpload, msg.Payload))
	case MsgLeaveUpload:
		s.Hub.Unsubscribe(conn, hub.Topic(hub.KindUpload, msg.Payload))
	case MsgJoinGeneration:
		s.Hub.Subscribe(ctx, conn, hub.Topic(hub.KindGeneration, msg.Payload))
	case MsgLeaveGeneration:
		s.Hub.Unsubscribe(conn, hub.Topic(hub.KindGeneration, msg.Payload))
	default:
		s.logger.Debug("unknown control message ignored", "conn_id", conn.ID(), "type", msg.Type)
	}
}

// keepAlive pings the client until done is closed.
func keepAlive(ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
