package chatws

import (
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const closeWriteWait = time.Second

// Conn is the subset of the websocket connection the gateway needs.
// *websocket.Conn from gofiber/contrib/websocket satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Handle is one accepted connection. Writes are serialized so broadcasts and
// keepalive replies never interleave on the wire.
type Handle struct {
	id             string
	conversationID int64
	userID         int64
	conn           Conn
	writeTimeout   time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

func newHandle(conn Conn, conversationID int64, writeTimeout time.Duration) *Handle {
	return &Handle{
		id:             uuid.NewString(),
		conversationID: conversationID,
		conn:           conn,
		writeTimeout:   writeTimeout,
	}
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) UserID() int64 {
	return h.userID
}

func (h *Handle) ConversationID() int64 {
	return h.conversationID
}

func (h *Handle) Send(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.writeTimeout > 0 {
		if err := h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			return err
		}
	}
	return h.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame with code and tears the transport down. Only the
// first call has an effect.
func (h *Handle) Close(code int, reason string) {
	h.closeOnce.Do(func() {
		_ = h.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(closeWriteWait),
		)
		_ = h.conn.Close()
	})
}
