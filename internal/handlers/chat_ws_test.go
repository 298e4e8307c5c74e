package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gersondiaz03/aasmcbev2/internal/models"
	chatws "github.com/Gersondiaz03/aasmcbev2/internal/websocket"
	"github.com/Gersondiaz03/aasmcbev2/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	gws "github.com/gorilla/websocket"
)

const wsTestSecret = "ws-test-secret"

// conversation 11 is between admin 1 and counselor 7
type fixedParticipants map[int64][2]int64

func (p fixedParticipants) IsParticipant(_ context.Context, conversationID int64, userID int64) (bool, error) {
	pair, ok := p[conversationID]
	return ok && (pair[0] == userID || pair[1] == userID), nil
}

type wsTestServer struct {
	app      *fiber.App
	registry *chatws.Registry
	addr     string
}

func startWSTestServer(t *testing.T, service *stubChatService) *wsTestServer {
	t.Helper()

	registry := chatws.NewRegistry()
	gateway := chatws.NewGateway(
		registry,
		chatws.JWTVerifier(wsTestSecret),
		fixedParticipants{11: {1, 7}},
		chatws.GatewayConfig{WriteTimeout: time.Second},
	)
	handler := NewChatHandler(context.Background(), service, registry, gateway, PageLimits{})

	app := newChatTestApp(handler, "admin", "1")
	app.Get("/api/v1/chat/ws/:id", websocket.New(handler.HandleWebSocket))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() {
		registry.Close()
		_ = app.Shutdown()
	})

	return &wsTestServer{app: app, registry: registry, addr: ln.Addr().String()}
}

func (s *wsTestServer) dial(t *testing.T, conversation string, query string, header http.Header) *gws.Conn {
	t.Helper()

	url := "ws://" + s.addr + "/api/v1/chat/ws/" + conversation
	if query != "" {
		url += "?" + query
	}
	conn, _, err := gws.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func expectCloseCode(t *testing.T, conn *gws.Conn, code int) {
	t.Helper()

	_, _, err := conn.ReadMessage()
	var closeErr *gws.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected a close frame, got %v", err)
	}
	if closeErr.Code != code {
		t.Fatalf("expected close code %d, got %d (%s)", code, closeErr.Code, closeErr.Text)
	}
}

func TestWebSocketExpiredTokenIsClosedUnregistered(t *testing.T) {
	server := startWSTestServer(t, &stubChatService{})

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, utils.Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(wsTestSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	conn := server.dial(t, "11", "token="+expired, nil)
	expectCloseCode(t, conn, chatws.CloseAuthenticationFailed)

	if server.registry.Rooms() != 0 {
		t.Fatalf("rejected socket must not be registered, rooms=%d", server.registry.Rooms())
	}
}

func TestWebSocketForgedTokenIsClosed(t *testing.T) {
	server := startWSTestServer(t, &stubChatService{})

	forged, err := utils.GenerateToken(1, "admin", "not-the-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	conn := server.dial(t, "11", "token="+forged, nil)
	expectCloseCode(t, conn, chatws.CloseAuthenticationFailed)
}

func TestWebSocketMissingTokenIsClosed(t *testing.T) {
	server := startWSTestServer(t, &stubChatService{})

	conn := server.dial(t, "11", "", nil)
	expectCloseCode(t, conn, chatws.CloseAuthenticationFailed)
}

func TestWebSocketNonParticipantIsClosedUnregistered(t *testing.T) {
	server := startWSTestServer(t, &stubChatService{})

	token, err := utils.GenerateToken(3, "counselor", wsTestSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	conn := server.dial(t, "11", "token="+token, nil)
	expectCloseCode(t, conn, chatws.CloseAuthorizationFailed)

	if server.registry.Rooms() != 0 {
		t.Fatalf("rejected socket must not be registered, rooms=%d", server.registry.Rooms())
	}
}

func TestWebSocketStreamsKeepaliveAndNewMessages(t *testing.T) {
	service := &stubChatService{
		participant: true,
		createResult: &models.ChatMessage{
			ID:             77,
			ConversationID: 11,
			SenderID:       1,
			ReceiverID:     7,
			Text:           "hello counselor",
			CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	}
	server := startWSTestServer(t, service)

	token, err := utils.GenerateToken(7, "counselor", wsTestSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn := server.dial(t, "11", "", header)

	waitFor(t, "registration", func() bool { return server.registry.RoomSize(11) == 1 })

	if err := conn.WriteMessage(gws.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage pong: %v", err)
	}
	if string(payload) != `{"type":"pong"}` {
		t.Fatalf("unexpected keepalive reply %s", payload)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/conversations/11/messages", strings.NewReader(`{"receiver_id":7,"text":"hello counselor"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	_, payload, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage event: %v", err)
	}
	var event models.NewMessageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if event.Type != models.EventTypeNewMessage || event.Message.ID != 77 || event.Message.Text != "hello counselor" {
		t.Fatalf("unexpected event %+v", event)
	}

	_ = conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
	waitFor(t, "deregistration", func() bool { return server.registry.Rooms() == 0 })
}
