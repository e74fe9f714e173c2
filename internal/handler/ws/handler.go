package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/fx"

	"github.com/clinicore/rtc-service/config"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
	wsmarshaller "github.com/clinicore/rtc-service/internal/handler/marshaller/ws"
	"github.com/clinicore/rtc-service/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxFrame   = 64 << 10
)

type WSHandler struct {
	logger   *slog.Logger
	cfg      *config.Config
	reg      registry.Registrar
	identity service.Identity

	presence      *service.Presence
	rooms         *service.RoomManager
	messages      *service.Messages
	receipts      *service.Receipts
	typing        *service.Typing
	notifications *service.Notifications
	emergency     *service.Emergency

	upgrader websocket.Upgrader
}

type Params struct {
	fx.In

	Logger        *slog.Logger
	Cfg           *config.Config
	Registrar     registry.Registrar
	Identity      service.Identity
	Presence      *service.Presence
	Rooms         *service.RoomManager
	Messages      *service.Messages
	Receipts      *service.Receipts
	Typing        *service.Typing
	Notifications *service.Notifications
	Emergency     *service.Emergency
}

func NewWSHandler(p Params) *WSHandler {
	return &WSHandler{
		logger:        p.Logger,
		cfg:           p.Cfg,
		reg:           p.Registrar,
		identity:      p.Identity,
		presence:      p.Presence,
		rooms:         p.Rooms,
		messages:      p.Messages,
		receipts:      p.Receipts,
		typing:        p.Typing,
		notifications: p.Notifications,
		emergency:     p.Emergency,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. AUTHENTICATE BEFORE UPGRADING
	// The identity check is bounded; a slow verifier rejects the handshake
	// instead of holding a half-admitted socket open.
	authCtx, cancel := context.WithTimeout(r.Context(), h.cfg.Auth.Timeout)
	principal, err := h.identity.Verify(authCtx, bearerToken(r))
	cancel()
	if err != nil {
		h.logger.Warn("ws auth rejected", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// 2. UPGRADE TO WEBSOCKET
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer sock.Close()

	// 3. REGISTER THE SESSION
	conn := registry.NewConnector(context.Background(), principal.UserID, h.cfg.Registry.MailboxSize)
	h.presence.Connect(conn)
	defer h.presence.Disconnect(principal.UserID, conn.GetID())

	h.logger.Info("ws opened",
		"user_id", principal.UserID,
		"conn_id", conn.GetID(),
		"role", principal.Role,
	)

	// 4. PUMPS
	go h.writePump(sock, conn)
	h.readLoop(sock, conn, principal)
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// writePump owns every write to the socket: outbound events, pings, and the
// final close frame once the mailbox is closed.
func (h *WSHandler) writePump(sock *websocket.Conn, conn registry.Connector) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// Capture the mailbox once; the pooled connector swaps channels on reuse.
	recv := conn.Recv()

	for {
		select {
		case ev, ok := <-recv:
			if !ok {
				sock.SetWriteDeadline(time.Now().Add(writeWait))
				sock.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				sock.Close()
				return
			}
			data, err := wsmarshaller.MarshallEvent(ev)
			if err != nil {
				h.logger.Error("ws event marshal failed", "err", err)
				continue
			}
			sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
				sock.Close()
				return
			}
		case <-ticker.C:
			sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				sock.Close()
				return
			}
		}
	}
}

// readLoop consumes client frames. Every frame, including pongs, refreshes
// the activity stamp watched by the inactivity reaper.
func (h *WSHandler) readLoop(sock *websocket.Conn, conn registry.Connector, principal model.Principal) {
	sock.SetReadLimit(maxFrame)
	sock.SetReadDeadline(time.Now().Add(pongWait))
	sock.SetPongHandler(func(string) error {
		sock.SetReadDeadline(time.Now().Add(pongWait))
		h.reg.Touch(principal.UserID)
		return nil
	})

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws read ended", "user_id", principal.UserID, "err", err)
			}
			return
		}
		sock.SetReadDeadline(time.Now().Add(pongWait))
		h.reg.Touch(principal.UserID)

		h.dispatch(conn, principal, data)
	}
}
