package core

import (
	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/domain"
)

// Join adds a connection to the room registered under code. It is idempotent
// for a connection that is already a member: the current room is returned
// unchanged.
func (s *Store) Join(code string, id domain.PlayerID, name string) (domain.RoomSnapshot, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return domain.RoomSnapshot{}, ErrRoomNotFound
	}
	if room.FindPlayer(id) != nil {
		return room.Snapshot(), nil
	}
	if _, tracked := s.playerToRoom[id]; tracked {
		return domain.RoomSnapshot{}, ErrAlreadyInRoom
	}
	if room.Status != domain.StatusWaiting {
		return domain.RoomSnapshot{}, ErrGameStarted
	}
	if len(room.Players) >= domain.MaxPlayers {
		return domain.RoomSnapshot{}, ErrRoomFull
	}

	player, err := domain.NewPlayer(id, name)
	if err != nil {
		return domain.RoomSnapshot{}, ErrNameRequired
	}
	room.Players = append(room.Players, player)
	room.Touch()
	s.playerToRoom[id] = code

	log.Info().Str("module", "core.membership").Str("code", code).Str("player", name).Msg("player joined")
	return room.Snapshot(), nil
}

// LeaveResult describes the aftermath of a departure. Room is only valid when
// Deleted is false.
type LeaveResult struct {
	RoomCode string
	Room     domain.RoomSnapshot
	Removed  domain.PlayerSnapshot
	WasHost  bool
	Deleted  bool
}

// Leave removes a connection from its room, deleting the room when it empties
// and migrating the host to the oldest remaining member otherwise. The second
// return is false when the connection is not in any room, which is a no-op,
// not an error.
func (s *Store) Leave(id domain.PlayerID) (LeaveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.playerToRoom[id]
	if !ok {
		return LeaveResult{}, false
	}
	room, ok := s.rooms[code]
	if !ok {
		// Stale index entry; clean it up and treat as not-in-room.
		delete(s.playerToRoom, id)
		return LeaveResult{}, false
	}

	removed := room.RemovePlayer(id)
	if removed == nil {
		delete(s.playerToRoom, id)
		return LeaveResult{}, false
	}
	delete(s.playerToRoom, id)

	res := LeaveResult{
		RoomCode: code,
		Removed:  removed.Snapshot(),
		WasHost:  room.HostID == id,
	}

	if len(room.Players) == 0 {
		delete(s.rooms, code)
		res.Deleted = true
		log.Info().Str("module", "core.membership").Str("code", code).Msg("room deleted (empty)")
		return res, true
	}

	if res.WasHost {
		room.HostID = room.Players[0].ID
		log.Info().Str("module", "core.membership").Str("code", code).Str("host", room.Players[0].Name).Msg("host migrated")
	}
	room.Touch()
	res.Room = room.Snapshot()

	log.Info().Str("module", "core.membership").Str("code", code).Str("player", removed.Name).Msg("player left")
	return res, true
}

// Disconnect is the transport-loss entry point. An abrupt connection loss
// runs exactly the same cleanup and host-migration path as an explicit leave.
func (s *Store) Disconnect(id domain.PlayerID) (LeaveResult, bool) {
	return s.Leave(id)
}
