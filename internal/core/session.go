package core

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/domain"
)

// UpdateStep records a synchronized puzzle-progress signal. The counter never
// decreases within a session: a regressive update is clamped to the current
// value, and the effective step is what gets broadcast.
func (s *Store) UpdateStep(code string, step int) (domain.RoomSnapshot, int, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return domain.RoomSnapshot{}, 0, ErrRoomNotFound
	}
	if step > room.CurrentStep {
		room.CurrentStep = step
	}
	room.Touch()

	log.Debug().Str("module", "core.session").Str("code", code).Int("step", room.CurrentStep).Msg("step updated")
	return room.Snapshot(), room.CurrentStep, nil
}

// UpdateMission sets the room's current mission counter.
func (s *Store) UpdateMission(code string, mission int) (domain.RoomSnapshot, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return domain.RoomSnapshot{}, ErrRoomNotFound
	}
	room.CurrentMission = mission
	room.Touch()

	log.Info().Str("module", "core.session").Str("code", code).Int("mission", mission).Msg("mission updated")
	return room.Snapshot(), nil
}

// CompleteCity appends a city label to the room's completion set. The set is
// append-only within a session. Completing the full roster is the external
// signal that ends the session, moving playing to finished.
func (s *Store) CompleteCity(code, city string) (domain.RoomSnapshot, error) {
	code = NormalizeCode(code)
	city = strings.TrimSpace(city)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return domain.RoomSnapshot{}, ErrRoomNotFound
	}
	if city != "" {
		room.CompletedCities[city] = struct{}{}
	}
	if room.Status == domain.StatusPlaying && len(room.CompletedCities) >= domain.TotalCities {
		room.Status = domain.StatusFinished
		log.Info().Str("module", "core.session").Str("code", code).Msg("session finished")
	}
	room.Touch()

	log.Info().Str("module", "core.session").Str("code", code).Str("city", city).Msg("city completed")
	return room.Snapshot(), nil
}

// AppendChat stores a chat message on the room's bounded buffer and returns
// the message as it should be relayed.
func (s *Store) AppendChat(code, name, message string) (domain.ChatMessage, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return domain.ChatMessage{}, ErrRoomNotFound
	}
	msg := domain.ChatMessage{
		Name:      strings.TrimSpace(name),
		Message:   strings.TrimSpace(message),
		Timestamp: time.Now(),
	}
	room.AppendChat(msg, s.chatHistory)
	room.Touch()
	return msg, nil
}
