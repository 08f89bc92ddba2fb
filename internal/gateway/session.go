package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"chatroom/backend/internal/hub"
	"chatroom/backend/internal/logger"

	"github.com/rs/zerolog"
)

// ErrSessionClosed is returned by Handle once the session is closed.
var ErrSessionClosed = errors.New("session closed")

// State is the lifecycle stage of a Session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the per-connection state machine. Handle is called from a
// single goroutine; State and User are safe to call from any goroutine.
type Session struct {
	ID     string
	gw     *Gateway
	client *hub.Client
	log    zerolog.Logger

	mu    sync.Mutex
	state State
	user  string
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the identity bound at authentication, or "".
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Client returns the outbound side of the connection.
func (s *Session) Client() *hub.Client {
	return s.client
}

// Handle processes one inbound event. A non-nil error means the connection
// must be closed.
func (s *Session) Handle(ctx context.Context, in Inbound) error {
	s.gw.metrics.EventsReceived.WithLabelValues(eventLabel(in.Type)).Inc()

	switch s.State() {
	case StateClosed:
		return ErrSessionClosed
	case StateUnauthenticated:
		return s.handleUnauthenticated(in)
	}

	err := s.dispatch(ctx, in)
	if err != nil {
		s.log.Debug().Err(err).Str(logger.FieldEvent, in.Type).Msg("event rejected")
		s.gw.send(s, errorEvent(clientMessage(err)))
	}
	return nil
}

func (s *Session) handleUnauthenticated(in Inbound) error {
	if in.Type != EventAuth {
		s.gw.send(s, errorEvent(fmt.Sprintf("%s: authenticate before sending %q", ErrUnauthorized, in.Type)))
		return nil
	}

	var p AuthPayload
	if err := decodePayload(in, &p); err != nil {
		s.gw.send(s, errorEvent(clientMessage(err)))
		return err
	}
	user, err := s.gw.Authenticate(p.Token)
	if err != nil {
		s.log.Info().Err(err).Msg("authentication failed")
		s.gw.send(s, errorEvent("Authentication failed"))
		return err
	}
	s.authenticate(user)
	return nil
}

func (s *Session) dispatch(ctx context.Context, in Inbound) error {
	switch in.Type {
	case EventJoin:
		var p RoomPayload
		if err := decodePayload(in, &p); err != nil {
			return err
		}
		return s.gw.join(ctx, s, p.Room)
	case EventLeave:
		var p RoomPayload
		if err := decodePayload(in, &p); err != nil {
			return err
		}
		return s.gw.leave(s, p.Room)
	case EventMessage:
		var p MessagePayload
		if err := decodePayload(in, &p); err != nil {
			return err
		}
		return s.gw.message(ctx, s, p.Room, p.text())
	case EventTyping:
		var p RoomPayload
		if err := decodePayload(in, &p); err != nil {
			return err
		}
		return s.gw.typing(s, p.Room)
	case EventAuth:
		return fmt.Errorf("%w: already authenticated", ErrValidation)
	default:
		return fmt.Errorf("%w: unknown event %q", ErrValidation, in.Type)
	}
}

// Close moves the session to Closed and runs disconnect cleanup once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.gw.disconnect(s)
}

func (s *Session) authenticate(user string) {
	s.mu.Lock()
	if s.state != StateUnauthenticated {
		s.mu.Unlock()
		return
	}
	s.state = StateAuthenticated
	s.user = user
	s.log = s.log.With().Str(logger.FieldUsername, user).Logger()
	s.mu.Unlock()

	s.gw.send(s, connectedEvent(user))
}

func decodePayload(in Inbound, v any) error {
	if len(in.Payload) == 0 {
		return fmt.Errorf("%w: %s payload is required", ErrValidation, in.Type)
	}
	if err := json.Unmarshal(in.Payload, v); err != nil {
		return fmt.Errorf("%w: malformed %s payload", ErrValidation, in.Type)
	}
	return nil
}

// eventLabel bounds the metric label set to known event types.
func eventLabel(t string) string {
	switch t {
	case EventAuth, EventJoin, EventLeave, EventMessage, EventTyping:
		return t
	default:
		return "unknown"
	}
}
