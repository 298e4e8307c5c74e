package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Gersondiaz03/aasmcbev2/internal/models"
	"github.com/Gersondiaz03/aasmcbev2/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
)

const (
	CloseNormal               = websocket.CloseNormalClosure
	CloseGoingAway            = websocket.CloseGoingAway
	CloseInternalError        = websocket.CloseInternalServerErr
	CloseAuthenticationFailed = 4401
	CloseAuthorizationFailed  = 4403

	// KeepaliveProbe is the only inbound payload the gateway understands.
	KeepaliveProbe = "ping"
)

var (
	ErrAuthenticationFailed = errors.New("websocket authentication failed")
	ErrAuthorizationFailed  = errors.New("websocket authorization failed")
)

type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthorized
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorized:
		return "authorized"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TokenVerifier resolves a handshake token to a user id.
type TokenVerifier func(token string) (int64, error)

// JWTVerifier verifies HS256 tokens signed with secret.
func JWTVerifier(secret string) TokenVerifier {
	return func(token string) (int64, error) {
		claims, err := utils.ValidateToken(token, secret)
		if err != nil {
			return 0, err
		}
		return claims.UserID()
	}
}

type participantChecker interface {
	IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error)
}

type GatewayConfig struct {
	// IdleTimeout closes a streaming connection that sends nothing for this
	// long. Zero disables it.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
}

type Gateway struct {
	registry     *Registry
	verify       TokenVerifier
	participants participantChecker
	idleTimeout  time.Duration
	writeTimeout time.Duration
	pong         []byte

	// OnTransition, when set, observes every state change of every connection.
	OnTransition func(handle *Handle, from State, to State)
}

func NewGateway(
	registry *Registry,
	verify TokenVerifier,
	participants participantChecker,
	cfg GatewayConfig,
) *Gateway {
	pong, _ := json.Marshal(models.NewPongEvent())
	return &Gateway{
		registry:     registry,
		verify:       verify,
		participants: participants,
		idleTimeout:  cfg.IdleTimeout,
		writeTimeout: cfg.WriteTimeout,
		pong:         pong,
	}
}

type connection struct {
	gateway *Gateway
	handle  *Handle
	state   State
}

func (c *connection) moveTo(next State) {
	previous := c.state
	c.state = next
	if c.gateway.OnTransition != nil {
		c.gateway.OnTransition(c.handle, previous, next)
	}
}

func (c *connection) closeWith(code int, reason string) {
	c.handle.Close(code, reason)
	c.moveTo(StateClosed)
}

// Serve drives one accepted connection to completion. It returns
// ErrAuthenticationFailed or ErrAuthorizationFailed when the handshake is
// rejected, nil on a clean disconnect and the transport error otherwise.
func (g *Gateway) Serve(ctx context.Context, conn Conn, conversationID int64, token string) error {
	c := &connection{
		gateway: g,
		handle:  newHandle(conn, conversationID, g.writeTimeout),
		state:   StateConnecting,
	}

	c.moveTo(StateAuthenticating)
	token = strings.TrimSpace(token)
	if token == "" {
		c.closeWith(CloseAuthenticationFailed, "authentication failed")
		return fmt.Errorf("%w: missing token", ErrAuthenticationFailed)
	}
	userID, err := g.verify(token)
	if err != nil {
		c.closeWith(CloseAuthenticationFailed, "authentication failed")
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	c.handle.userID = userID

	c.moveTo(StateAuthorized)
	allowed, err := g.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		log.Printf("chat ws participant check conversation=%d user=%d: %v", conversationID, userID, err)
		c.closeWith(CloseInternalError, "authorization unavailable")
		return fmt.Errorf("%w: %v", ErrAuthorizationFailed, err)
	}
	if !allowed {
		c.closeWith(CloseAuthorizationFailed, "not authorized")
		return ErrAuthorizationFailed
	}

	g.registry.Connect(conversationID, c.handle)
	c.moveTo(StateStreaming)

	stop := make(chan struct{})
	defer func() {
		close(stop)
		g.registry.Disconnect(conversationID, c.handle)
		c.closeWith(CloseNormal, "")
	}()
	go func() {
		select {
		case <-ctx.Done():
			c.handle.Close(CloseGoingAway, "server shutting down")
		case <-stop:
		}
	}()

	return g.stream(c.handle, conn)
}

func (g *Gateway) stream(handle *Handle, conn Conn) error {
	for {
		if g.idleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(g.idleTimeout)); err != nil {
				return err
			}
		}

		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, CloseNormal, CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}

		if messageType == websocket.TextMessage && string(payload) == KeepaliveProbe {
			if err := handle.Send(g.pong); err != nil {
				return err
			}
		}
	}
}
