package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/handler"
	"chatroom/backend/internal/hub"
	"chatroom/backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to WebSocket sessions.
type Handler struct {
	gw       *Gateway
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewHandler creates the /ws handler.
func NewHandler(gw *Gateway, cfg config.WebSocketConfig) *Handler {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	return &Handler{
		gw:  gw,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// ServeWS authenticates the handshake credential, if any, and runs the
// session until the connection closes. Without a credential the client must
// send an auth event within the auth timeout. A bad credential is refused
// with 401 before the upgrade.
func (h *Handler) ServeWS(c *gin.Context) {
	var user string
	if credential := auth.CredentialFromRequest(c.Request); credential != "" {
		u, err := h.gw.Authenticate(credential)
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.ErrorResponse{Error: "Invalid or expired token"})
			return
		}
		user = u
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	sess := h.gw.Open(ctx, user)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, sess)
	}()

	h.readPump(ctx, conn, sess)
	sess.Close()
	<-writerDone
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, sess *Session) {
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	if sess.State() == StateUnauthenticated {
		timer := time.AfterFunc(h.cfg.AuthTimeout, func() {
			if sess.State() == StateUnauthenticated {
				logger.L().Info().Str(logger.FieldConnID, sess.ID).Msg("closing connection that never authenticated")
				sess.Client().Close()
			}
		})
		defer timer.Stop()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				sess.log.Info().Int64("limit", h.cfg.MaxMessageSize).Msg("frame exceeded maximum size")
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				sess.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			h.gw.send(sess, errorEvent(ErrValidation.Error()+": malformed event"))
			continue
		}
		if err := sess.Handle(ctx, in); err != nil {
			return
		}
	}
}

// writePump is the only writer on conn. On Done it flushes what is
// already queued, sends a close frame and closes the socket.
func (h *Handler) writePump(conn *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	client := sess.Client()
	for {
		select {
		case data := <-client.Outbound():
			conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-client.Done():
			h.flush(conn, client)
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) flush(conn *websocket.Conn, client *hub.Client) {
	conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	for {
		select {
		case data := <-client.Outbound():
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
