package signal

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/core"
	"github.com/avrile/opsroom/internal/domain"
)

func (ctl *Controller) handleCreateRoom(sid domain.PlayerID, c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create_room payload")
		ctl.sendError(c, core.ErrUpdateFailed)
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		ctl.sendError(c, core.ErrNameRequired)
		return
	}

	room, err := ctl.store.CreateRoom(sid, name)
	if err != nil {
		ctl.sendError(c, err)
		return
	}

	created := struct {
		Type string              `json:"type"`
		Code string              `json:"code"`
		Room domain.RoomSnapshot `json:"room"`
	}{"room_created", room.Code, room}
	ctl.sendJSON(c, created)

	joined := struct {
		Type string              `json:"type"`
		Room domain.RoomSnapshot `json:"room"`
	}{"room_joined", room}
	ctl.sendJSON(c, joined)
}

func (ctl *Controller) handleJoinRoom(sid domain.PlayerID, c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join_room payload")
		ctl.sendError(c, core.ErrUpdateFailed)
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		ctl.sendError(c, core.ErrNameRequired)
		return
	}
	if strings.TrimSpace(p.Code) == "" {
		ctl.sendError(c, core.ErrCodeRequired)
		return
	}

	room, err := ctl.store.Join(p.Code, sid, name)
	if err != nil {
		ctl.sendError(c, err)
		return
	}

	joined := struct {
		Type string              `json:"type"`
		Room domain.RoomSnapshot `json:"room"`
	}{"room_joined", room}
	ctl.sendJSON(c, joined)

	update := struct {
		Type string              `json:"type"`
		Room domain.RoomSnapshot `json:"room"`
	}{"room_update", room}
	ctl.broadcastRoom(room, update)
}

func (ctl *Controller) handleLeaveRoom(sid domain.PlayerID, c *wsConn) {
	ctl.departed(sid)
	// Leaving when not in a room is a quiet no-op; the ack goes out either way.
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{"left"})
}

// onDisconnect runs off the read pump. An abrupt loss takes exactly the same
// path as an explicit leave, then the connection is forgotten.
func (ctl *Controller) onDisconnect(sid domain.PlayerID) {
	ctl.departed(sid)
	ctl.unregister(sid)
	ctl.chatLimiter.Forget(sid)
}

// departed is the shared leave/disconnect reconciliation: remove the player,
// and if the room survives, tell the remaining member who left and what the
// room now looks like.
func (ctl *Controller) departed(sid domain.PlayerID) {
	res, ok := ctl.store.Leave(sid)
	if !ok || res.Deleted {
		return
	}

	left := struct {
		Type       string          `json:"type"`
		PlayerID   domain.PlayerID `json:"playerId"`
		PlayerName string          `json:"playerName"`
	}{"player_left", res.Removed.ID, res.Removed.Name}
	ctl.broadcastRoom(res.Room, left)

	update := struct {
		Type string              `json:"type"`
		Room domain.RoomSnapshot `json:"room"`
	}{"room_update", res.Room}
	ctl.broadcastRoom(res.Room, update)
}
