package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fas-floormap/backend/internal/floor"
	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// WebSocket message types for the floor protocol
const (
	// Client -> Server messages
	MsgTypeWheel       = "wheel"
	MsgTypePointerDown = "pointer:down"
	MsgTypePointerMove = "pointer:move"
	MsgTypePointerUp   = "pointer:up"
	MsgTypePointerLost = "pointer:lost"
	MsgTypeNudge       = "nudge"
	MsgTypeResize      = "resize"
	MsgTypeMode        = "mode"
	MsgTypeSnapshot    = "snapshot"
	MsgTypePing        = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeFrame     = "frame"
	MsgTypeInput     = "input"
	MsgTypeAck       = "ack"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const (
	defaultFrameBuffer = 8
	wsWriteTimeout     = 5 * time.Second
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// wsBinaryMessage is the msgpack form of WSMessage sent to binary clients.
type wsBinaryMessage struct {
	Type      string      `msgpack:"type"`
	ID        string      `msgpack:"id,omitempty"`
	Payload   interface{} `msgpack:"payload,omitempty"`
	Timestamp int64       `msgpack:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message" msgpack:"message"`
	Code    string `json:"code,omitempty" msgpack:"code,omitempty"`
}

// WebSocketHandler streams floor frames to clients and accepts their input
type WebSocketHandler struct {
	sessions       SessionManager
	upgrader       websocket.Upgrader
	frameBuffer    int
	maxMessageSize int64
}

// NewWebSocketHandler creates a new floor WebSocket handler
func NewWebSocketHandler(sessions SessionManager, frameBuffer int, maxMessageKB int) *WebSocketHandler {
	if frameBuffer < 1 {
		frameBuffer = defaultFrameBuffer
	}
	if maxMessageKB < 1 {
		maxMessageKB = 64
	}
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		frameBuffer:    frameBuffer,
		maxMessageSize: int64(maxMessageKB) * 1024,
	}
}

// wsConn serializes writes to one connection.
type wsConn struct {
	ws     *websocket.Conn
	binary bool
	mu     sync.Mutex
}

func (c *wsConn) send(msgType, id string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := time.Now().UnixMilli()
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))

	if c.binary {
		data, err := msgpack.Marshal(wsBinaryMessage{Type: msgType, ID: id, Payload: payload, Timestamp: ts})
		if err != nil {
			return err
		}
		return c.ws.WriteMessage(websocket.BinaryMessage, data)
	}

	msg := WSMessage{Type: msgType, ID: id, Timestamp: ts}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	return c.ws.WriteJSON(msg)
}

func (c *wsConn) sendError(id, message, code string) {
	if err := c.send(MsgTypeError, id, WSErrorResponse{Message: message, Code: code}); err != nil {
		fmt.Printf("[WebSocket] Failed to send error: %v\n", err)
	}
}

// HandleWebSocket upgrades the connection, sends a snapshot and then a frame
// after every simulation tick. Frames are msgpack-encoded binary messages
// when the client asks for ?format=msgpack.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	f, sessionID, err := lookupFloor(wsh.sessions, c)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsh.maxMessageSize)

	conn := &wsConn{ws: ws, binary: c.QueryParam("format") == "msgpack"}
	ctx := c.Request().Context()

	fmt.Printf("[WebSocket] Client connected to session %s (binary=%t)\n", shortID(sessionID), conn.binary)

	// Subscribe first so no frame published after the snapshot is missed
	frames, unsubscribe := f.Subscribe(wsh.frameBuffer)
	defer unsubscribe()

	snap, err := f.Snapshot(ctx)
	if err != nil {
		conn.sendError("", "Session is closed", CodeSessionClosed)
		return nil
	}
	if err := conn.send(MsgTypeConnected, sessionID, snap); err != nil {
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	go wsh.pumpFrames(conn, frames, done)

	// Main message loop
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}
		wsh.sessions.TouchSession(sessionID)

		if err := wsh.dispatch(conn, f, sessionID, msg); err != nil {
			conn.sendError(msg.ID, err.Error(), CodeSessionClosed)
			break
		}
	}

	fmt.Printf("[WebSocket] Client disconnected from session %s\n", shortID(sessionID))
	return nil
}

// pumpFrames forwards published frames until the client goes away or the
// floor stops.
func (wsh *WebSocketHandler) pumpFrames(conn *wsConn, frames <-chan models.Frame, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case fr, ok := <-frames:
			if !ok {
				conn.mu.Lock()
				conn.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(wsWriteTimeout))
				conn.mu.Unlock()
				conn.ws.Close()
				return
			}
			if err := conn.send(MsgTypeFrame, "", fr); err != nil {
				return
			}
		}
	}
}

// dispatch handles one client message. A returned error means the floor is
// gone and the connection should close; bad input is reported to the client.
func (wsh *WebSocketHandler) dispatch(conn *wsConn, f *floor.Floor, sessionID string, msg WSMessage) error {
	ctx := context.Background()

	var (
		reply interface{}
		err   error
	)
	switch msg.Type {
	case MsgTypePing:
		return conn.send(MsgTypePong, msg.ID, nil)

	case MsgTypeWheel:
		var p wheelRequest
		if !decodePayload(conn, msg, &p) {
			return nil
		}
		err = f.Wheel(ctx, p.Delta, geom.Pt(p.X, p.Y))

	case MsgTypePointerDown:
		var p pointerRequest
		if !decodePayload(conn, msg, &p) {
			return nil
		}
		reply, err = f.PointerDown(ctx, geom.Pt(p.X, p.Y), p.TargetID)

	case MsgTypePointerMove:
		var p pointerRequest
		if !decodePayload(conn, msg, &p) {
			return nil
		}
		reply, err = f.PointerMove(ctx, geom.Pt(p.X, p.Y))

	case MsgTypePointerUp:
		var p pointerRequest
		if !decodePayload(conn, msg, &p) {
			return nil
		}
		reply, err = f.PointerUp(ctx, geom.Pt(p.X, p.Y))

	case MsgTypePointerLost:
		err = f.LostCapture(ctx)

	case MsgTypeNudge:
		var p nudgeRequest
		if !decodePayload(conn, msg, &p) {
			return nil
		}
		dir, ok := models.ParseDirection(p.Direction)
		if p.EntityID == "" || !ok {
			conn.sendError(msg.ID, "Invalid nudge payload", CodeInvalidPayload)
			return nil
		}
		var moved bool
		moved, err = f.Nudge(ctx, p.EntityID, dir, p.Modifier)
		reply = map[string]bool{"moved": moved}

	case MsgTypeResize:
		var p resizeRequest
		if !decodePayload(conn, msg, &p) {
			return nil
		}
		err = f.Resize(ctx, p.Width, p.Height)

	case MsgTypeMode:
		var p modeRequest
		if !decodePayload(conn, msg, &p) {
			return nil
		}
		if p.EditMode == nil {
			conn.sendError(msg.ID, "Missing editMode", CodeInvalidPayload)
			return nil
		}
		err = f.SetEditMode(ctx, *p.EditMode)
		if err == nil {
			wsh.sessions.UpdateSession(sessionID, func(s *models.FloorSession) { s.EditMode = *p.EditMode })
		}

	case MsgTypeSnapshot:
		var snap floor.Snapshot
		snap, err = f.Snapshot(ctx)
		if err == nil {
			return conn.send(MsgTypeSnapshot, msg.ID, snap)
		}

	default:
		conn.sendError(msg.ID, "Unknown message type: "+msg.Type, CodeInvalidType)
		return nil
	}

	if err != nil {
		return err
	}
	if reply != nil {
		return conn.send(MsgTypeInput, msg.ID, reply)
	}
	return conn.send(MsgTypeAck, msg.ID, nil)
}

func decodePayload(conn *wsConn, msg WSMessage, v interface{}) bool {
	if len(msg.Payload) == 0 {
		conn.sendError(msg.ID, "Missing payload", CodeInvalidPayload)
		return false
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		conn.sendError(msg.ID, "Invalid payload: "+err.Error(), CodeInvalidPayload)
		return false
	}
	return true
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
