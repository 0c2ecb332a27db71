package signal

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/core"
	"github.com/avrile/opsroom/internal/domain"
)

func (ctl *Controller) handleSetRole(sid domain.PlayerID, c *wsConn, data []byte) {
	var p struct {
		Type string  `json:"type"`
		Code string  `json:"code"`
		Role *string `json:"role"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad set_role payload")
		ctl.sendError(c, core.ErrUpdateFailed)
		return
	}

	role := domain.RoleNone
	if p.Role != nil && *p.Role != "" {
		parsed, ok := domain.ParseRole(*p.Role)
		if !ok {
			ctl.sendError(c, &core.Error{Code: core.ErrUpdateFailed.Code, Message: "unknown role"})
			return
		}
		role = parsed
	}

	room, err := ctl.store.SetRole(sid, role)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.broadcastUpdate(room)
}

func (ctl *Controller) handleToggleReady(sid domain.PlayerID, c *wsConn) {
	room, err := ctl.store.ToggleReady(sid)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.broadcastUpdate(room)
}

func (ctl *Controller) handleStartGame(sid domain.PlayerID, c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad start_game payload")
		ctl.sendError(c, core.ErrUpdateFailed)
		return
	}

	room, err := ctl.store.StartGame(p.Code, sid)
	if err != nil {
		ctl.sendError(c, err)
		return
	}

	started := struct {
		Type string              `json:"type"`
		Room domain.RoomSnapshot `json:"room"`
	}{"game_started", room}
	ctl.broadcastRoom(room, started)
}

func (ctl *Controller) handleUpdateStep(c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Code string `json:"code"`
		Step int    `json:"step"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad update_step payload")
		ctl.sendError(c, core.ErrUpdateFailed)
		return
	}

	room, step, err := ctl.store.UpdateStep(p.Code, p.Step)
	if err != nil {
		ctl.sendError(c, err)
		return
	}

	updated := struct {
		Type string `json:"type"`
		Step int    `json:"step"`
	}{"step_updated", step}
	ctl.broadcastRoom(room, updated)
}

func (ctl *Controller) handleMissionUpdate(c *wsConn, data []byte) {
	var p struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Mission int    `json:"mission"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad mission_update payload")
		ctl.sendError(c, core.ErrUpdateFailed)
		return
	}

	room, err := ctl.store.UpdateMission(p.Code, p.Mission)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.broadcastUpdate(room)
}

func (ctl *Controller) handleCityComplete(c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Code string `json:"code"`
		City string `json:"city"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad city_complete payload")
		ctl.sendError(c, core.ErrUpdateFailed)
		return
	}

	room, err := ctl.store.CompleteCity(p.Code, p.City)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.broadcastUpdate(room)
}

func (ctl *Controller) handleSendMessage(sid domain.PlayerID, c *wsConn, data []byte) {
	var p struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send_message payload")
		ctl.sendError(c, core.ErrUpdateFailed)
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		return
	}
	if !ctl.chatLimiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("chat rate limited")
		return
	}

	msg, err := ctl.store.AppendChat(p.Code, p.Name, p.Message)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	room, ok := ctl.store.GetRoom(p.Code)
	if !ok {
		return
	}

	received := struct {
		Type string `json:"type"`
		domain.ChatMessage
	}{Type: "message_received", ChatMessage: msg}
	ctl.broadcastRoom(room, received)
}

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{"pong"})
}

func (ctl *Controller) broadcastUpdate(room domain.RoomSnapshot) {
	update := struct {
		Type string              `json:"type"`
		Room domain.RoomSnapshot `json:"room"`
	}{"room_update", room}
	ctl.broadcastRoom(room, update)
}
