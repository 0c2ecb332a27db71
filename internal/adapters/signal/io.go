package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/core"
	"github.com/avrile/opsroom/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump feeds inbound frames to the dispatcher. On exit the connection is
// reconciled exactly as an explicit leave.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.PlayerID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		ctl.onDisconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(sid, c, data)
		}
	}
}

// dispatch routes one inbound event by its envelope type. The event set is
// closed: anything unknown is rejected back to the sender.
func (ctl *Controller) dispatch(sid domain.PlayerID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, &core.Error{Code: core.ErrUpdateFailed.Code, Message: "malformed event payload"})
		return
	}

	switch env.Type {
	case "create_room":
		ctl.handleCreateRoom(sid, c, data)
	case "join_room":
		ctl.handleJoinRoom(sid, c, data)
	case "leave_room":
		ctl.handleLeaveRoom(sid, c)
	case "toggle_ready":
		ctl.handleToggleReady(sid, c)
	case "set_role":
		ctl.handleSetRole(sid, c, data)
	case "start_game":
		ctl.handleStartGame(sid, c, data)
	case "update_step":
		ctl.handleUpdateStep(c, data)
	case "mission_update":
		ctl.handleMissionUpdate(c, data)
	case "city_complete":
		ctl.handleCityComplete(c, data)
	case "send_message":
		ctl.handleSendMessage(sid, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
		ctl.sendError(c, &core.Error{
			Code:    core.ErrUpdateFailed.Code,
			Message: fmt.Sprintf("unknown event type %q", env.Type),
		})
	}
}
