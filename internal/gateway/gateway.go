// Package gateway runs the connection lifecycle of the chat service. It is
// the only package that talks to the auth gate, the presence table, the
// broadcaster and the message store together.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/hub"
	"chatroom/backend/internal/logger"
	"chatroom/backend/internal/metrics"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/presence"
	"chatroom/backend/internal/store"

	"github.com/oklog/ulid/v2"
)

const maxRoomLength = 64

var (
	// ErrUnauthorized rejects an event the connection may not send.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation rejects a malformed event.
	ErrValidation = errors.New("invalid request")
)

// Options tunes the gateway.
type Options struct {
	HistoryLimit     int
	MaxContentLength int
	StoreTimeout     time.Duration
	SendQueueSize    int
}

// Gateway wires authenticated sessions to presence, broadcast and storage.
type Gateway struct {
	auth     auth.Authenticator
	presence *presence.Table
	hub      *hub.Hub
	store    store.MessageStore
	metrics  *metrics.Metrics
	opts     Options
	locks    *roomLocks
	now      func() time.Time
}

// New creates a Gateway. The hub must resolve rooms through table.
func New(gate auth.Authenticator, table *presence.Table, h *hub.Hub, st store.MessageStore, m *metrics.Metrics, opts Options) *Gateway {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = store.DefaultLimit
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = 500
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 256
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Gateway{
		auth:     gate,
		presence: table,
		hub:      h,
		store:    st,
		metrics:  m,
		opts:     opts,
		locks:    newRoomLocks(),
		now:      time.Now,
	}
}

// Authenticate checks a credential with the auth gate.
func (g *Gateway) Authenticate(credential string) (string, error) {
	user, err := g.auth.Authenticate(credential)
	if err != nil {
		g.metrics.AuthFailures.Inc()
		return "", err
	}
	return user, nil
}

// Open registers a new connection. An empty user leaves the session
// unauthenticated until it sends an auth event.
func (g *Gateway) Open(ctx context.Context, user string) *Session {
	id := ulid.Make().String()
	client := hub.NewClient(id, g.opts.SendQueueSize)
	g.hub.Register(client)
	g.metrics.ConnectionsActive.Inc()

	s := &Session{
		ID:     id,
		gw:     g,
		client: client,
		log:    logger.Ctx(ctx).With().Str(logger.FieldConnID, id).Logger(),
	}
	if user != "" {
		s.authenticate(user)
	}
	s.log.Debug().Bool("authenticated", user != "").Msg("connection opened")
	return s
}

func (g *Gateway) join(ctx context.Context, s *Session, room string) error {
	room = normalizeRoom(room)
	if err := validateRoom(room); err != nil {
		return err
	}

	unlock := g.locks.lock(room)
	defer unlock()

	res, err := g.presence.Join(s.ID, s.User(), room)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if res.AlreadyMember {
		g.send(s, onlineUsersEvent(room, res.Members))
		return nil
	}
	g.trackRooms()
	s.log.Info().Str(logger.FieldRoom, room).Bool("first", res.First).Msg("joined room")

	g.publish(room, onlineUsersEvent(room, res.Members), "")

	history, err := g.recent(ctx, room)
	if err != nil {
		s.log.Warn().Err(err).Str(logger.FieldRoom, room).Msg("history unavailable")
		g.send(s, errorEvent("Failed to load room history"))
	}
	for _, m := range history {
		g.send(s, messageEvent(m))
	}

	g.publish(room, noticeEvent(room, fmt.Sprintf("%s joined %s", s.User(), room), g.now()), "")
	return nil
}

func (g *Gateway) leave(s *Session, room string) error {
	room = normalizeRoom(room)
	if err := validateRoom(room); err != nil {
		return err
	}

	unlock := g.locks.lock(room)
	defer unlock()

	res := g.presence.Leave(s.ID, room)
	if !res.WasMember {
		return nil
	}
	g.trackRooms()
	s.log.Info().Str(logger.FieldRoom, room).Msg("left room")

	if res.UserVacated {
		g.publish(room, onlineUsersEvent(room, res.Members), "")
	}
	g.publish(room, noticeEvent(room, fmt.Sprintf("%s left %s", s.User(), room), g.now()), "")
	return nil
}

func (g *Gateway) message(ctx context.Context, s *Session, room, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	room = normalizeRoom(room)
	if n := utf8.RuneCountInString(content); n > g.opts.MaxContentLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrValidation, g.opts.MaxContentLength)
	}
	if !g.presence.IsMember(s.ID, room) {
		return fmt.Errorf("%w: join %q before sending messages", ErrUnauthorized, room)
	}

	unlock := g.locks.lock(room)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()

	msg, err := g.store.Append(ctx, room, s.User(), content)
	if err != nil {
		g.metrics.StoreFailures.Inc()
		return err
	}
	g.metrics.MessagesPersisted.Inc()

	g.publish(room, messageEvent(msg), "")
	return nil
}

func (g *Gateway) typing(s *Session, room string) error {
	room = normalizeRoom(room)
	if !g.presence.IsMember(s.ID, room) {
		return fmt.Errorf("%w: join %q first", ErrUnauthorized, room)
	}
	g.publish(room, typingEvent(s.User(), room), s.ID)
	return nil
}

// disconnect runs the cleanup for a closed session exactly once.
func (g *Gateway) disconnect(s *Session) {
	user, updates := g.presence.DisconnectAll(s.ID)
	for _, u := range updates {
		// Joins and leaves may have run between DisconnectAll and taking the
		// lock, so the snapshot is read again under it.
		unlock := g.locks.lock(u.Room)
		g.publish(u.Room, onlineUsersEvent(u.Room, g.presence.Members(u.Room)), "")
		g.publish(u.Room, noticeEvent(u.Room, fmt.Sprintf("%s disconnected", user), g.now()), "")
		unlock()
	}

	g.hub.Unregister(s.ID)
	g.metrics.ConnectionsActive.Dec()
	g.trackRooms()
	s.log.Debug().Int("rooms", len(updates)).Msg("connection closed")
}

func (g *Gateway) recent(ctx context.Context, room string) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.StoreTimeout)
	defer cancel()
	return g.store.Recent(ctx, room, g.opts.HistoryLimit)
}

func (g *Gateway) publish(room string, event hub.Event, exclude string) {
	if err := g.hub.Publish(room, event, exclude); err != nil {
		logger.L().Error().Err(err).Str(logger.FieldRoom, room).Msg("publish failed")
	}
}

func (g *Gateway) send(s *Session, event hub.Event) {
	if err := g.hub.Send(s.ID, event); err != nil {
		s.log.Error().Err(err).Msg("send failed")
	}
}

func (g *Gateway) trackRooms() {
	g.metrics.RoomsActive.Set(float64(g.presence.Stats().Rooms))
}

func validateRoom(room string) error {
	switch {
	case room == "":
		return fmt.Errorf("%w: room is required", ErrValidation)
	case len(room) > maxRoomLength:
		return fmt.Errorf("%w: room name exceeds %d bytes", ErrValidation, maxRoomLength)
	}
	return nil
}

// clientMessage is the text sent back in an error event.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrStoreFailure):
		return "Failed to save message"
	case errors.Is(err, presence.ErrIdentityMismatch):
		return "unauthorized: connection identity mismatch"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "internal error"
	}
}
