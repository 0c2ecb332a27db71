// Package signal is the websocket protocol boundary. It validates inbound
// events, calls into the core coordinator, and fans room snapshots out to
// every member connection.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/config"
	"github.com/avrile/opsroom/internal/core"
	"github.com/avrile/opsroom/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Conn is an indirection over *websocket.Conn to ease testing.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	Close() error
}

type wsConn struct {
	conn Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Controller dispatches per-connection events into the store and owns the
// connection registry used for fan-out.
type Controller struct {
	store *core.Store
	cfg   *config.Config

	mu    sync.RWMutex
	conns map[domain.PlayerID]*wsConn

	chatLimiter *RateLimiter
}

func NewController(store *core.Store, cfg *config.Config) *Controller {
	ctl := &Controller{
		store:       store,
		cfg:         cfg,
		conns:       make(map[domain.PlayerID]*wsConn),
		chatLimiter: NewRateLimiter(cfg.ChatBurst, cfg.ChatWindow),
	}
	store.SetEvictFunc(ctl.roomEvicted)
	return ctl
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the read/write pumps. Each
// connection gets a fresh opaque id for its whole lifetime.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := domain.PlayerID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan []byte, 32),
	}
	conn.conn.SetReadLimit(ctl.cfg.ReadLimit)
	ctl.register(sid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

func (ctl *Controller) register(sid domain.PlayerID, c *wsConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.conns[sid] = c
}

func (ctl *Controller) unregister(sid domain.PlayerID) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	delete(ctl.conns, sid)
}

func (ctl *Controller) connOf(sid domain.PlayerID) (*wsConn, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	c, ok := ctl.conns[sid]
	return c, ok
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("frame dropped")
	}
}

// sendError reports a failure to the originating connection only. Errors are
// never broadcast; other members stay unaware of a failed attempt.
func (ctl *Controller) sendError(c *wsConn, err error) {
	var coord *core.Error
	if !errors.As(err, &coord) {
		log.Error().Err(err).Str("module", "signal").Msg("unexpected internal error")
		coord = core.ErrUpdateFailed
	}
	resp := struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}{"error", coord.Message, coord.Code}
	ctl.sendJSON(c, resp)
}

// broadcastRoom delivers v to every member of the room, the sender included.
// One code path renders state for all participants.
func (ctl *Controller) broadcastRoom(room domain.RoomSnapshot, v any) {
	for _, p := range room.Players {
		if c, ok := ctl.connOf(p.ID); ok {
			ctl.sendJSON(c, v)
		}
	}
}

// roomEvicted runs when the idle sweeper drops a room; members are told
// before their membership evaporates.
func (ctl *Controller) roomEvicted(room domain.RoomSnapshot) {
	resp := struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}{"room_closed", room.Code}
	ctl.broadcastRoom(room, resp)
}
