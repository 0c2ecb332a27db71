package core

import (
	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/domain"
)

// SetRole assigns role to the player behind id. Roles are a per-room
// exclusive resource: if another member already holds the requested role the
// call fails with ROLE_TAKEN and the requester's prior role is untouched.
// RoleNone always succeeds and releases whatever the player held.
func (s *Store) SetRole(id domain.PlayerID, role domain.Role) (domain.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, player, err := s.memberLocked(id)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	if role != domain.RoleNone && room.RoleHeldByOther(id, role) {
		return domain.RoomSnapshot{}, ErrRoleTaken
	}
	player.Role = role
	room.Touch()

	log.Info().Str("module", "core.coordinator").Str("code", room.Code).Str("player", player.Name).Str("role", string(role)).Msg("role set")
	return room.Snapshot(), nil
}

// ToggleReady flips the player's ready flag. It never silently no-ops: either
// the flag changes and the caller broadcasts, or a typed error comes back.
func (s *Store) ToggleReady(id domain.PlayerID) (domain.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, player, err := s.memberLocked(id)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	player.IsReady = !player.IsReady
	room.Touch()

	log.Info().Str("module", "core.coordinator").Str("code", room.Code).Str("player", player.Name).Bool("ready", player.IsReady).Msg("ready toggled")
	return room.Snapshot(), nil
}

// StartGame advances the room to playing. Only the host may trigger the
// transition, and only once the ready gate holds.
func (s *Store) StartGame(code string, requester domain.PlayerID) (domain.RoomSnapshot, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return domain.RoomSnapshot{}, ErrRoomNotFound
	}
	if room.HostID != requester {
		return domain.RoomSnapshot{}, ErrNotHost
	}
	if !room.CanStart() {
		return domain.RoomSnapshot{}, ErrStartFailed
	}

	room.Status = domain.StatusPlaying
	room.Touch()

	log.Info().Str("module", "core.coordinator").Str("code", code).Msg("game started")
	return room.Snapshot(), nil
}

// memberLocked resolves id to its room and player entry. Caller holds the
// write lock.
func (s *Store) memberLocked(id domain.PlayerID) (*domain.Room, *domain.Player, error) {
	code, ok := s.playerToRoom[id]
	if !ok {
		return nil, nil, ErrNotInRoom
	}
	room, ok := s.rooms[code]
	if !ok {
		return nil, nil, ErrNotInRoom
	}
	player := room.FindPlayer(id)
	if player == nil {
		return nil, nil, ErrNotInRoom
	}
	return room, player, nil
}
