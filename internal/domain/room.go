package domain

import (
	"sort"
	"time"
)

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

const (
	// MaxPlayers is the room capacity. The whole game is built around exactly
	// one agent and one operator.
	MaxPlayers = 2

	// TotalCities is how many city missions a session spans. Completing them
	// all finishes the session.
	TotalCities = 3
)

// Room pairs up to two players under a unique code. It is a plain mutable
// entity; all locking lives in the store that owns it.
type Room struct {
	Code            string
	Players         []*Player
	Status          RoomStatus
	CreatedAt       time.Time
	HostID          PlayerID
	CurrentStep     int
	CurrentMission  int
	CompletedCities map[string]struct{}
	Chat            []ChatMessage

	// LastActive tracks the most recent mutation, for idle eviction.
	LastActive time.Time
}

func NewRoom(code string, host *Player) *Room {
	now := time.Now()
	return &Room{
		Code:            code,
		Players:         []*Player{host},
		Status:          StatusWaiting,
		CreatedAt:       now,
		HostID:          host.ID,
		CurrentMission:  1,
		CompletedCities: make(map[string]struct{}),
		LastActive:      now,
	}
}

func (r *Room) Touch() {
	r.LastActive = time.Now()
}

func (r *Room) FindPlayer(id PlayerID) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// RoleHeldByOther reports whether any player other than id already holds role.
func (r *Room) RoleHeldByOther(id PlayerID, role Role) bool {
	for _, p := range r.Players {
		if p.ID != id && p.Role == role {
			return true
		}
	}
	return false
}

// RemovePlayer takes a player out of the list, preserving join order of the
// rest. It returns the removed player, or nil if id is not a member.
func (r *Room) RemovePlayer(id PlayerID) *Player {
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return p
		}
	}
	return nil
}

// CanStart is the ready gate: full occupancy, every player holding a role and
// flagged ready, and the session not started yet.
func (r *Room) CanStart() bool {
	if r.Status != StatusWaiting || len(r.Players) < MaxPlayers {
		return false
	}
	for _, p := range r.Players {
		if p.Role == RoleNone || !p.IsReady {
			return false
		}
	}
	return true
}

type ChatMessage struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendChat keeps at most limit messages, dropping the oldest first.
func (r *Room) AppendChat(msg ChatMessage, limit int) {
	r.Chat = append(r.Chat, msg)
	if limit > 0 && len(r.Chat) > limit {
		r.Chat = r.Chat[len(r.Chat)-limit:]
	}
}

// RoomSnapshot is the read-only view fanned out to clients.
type RoomSnapshot struct {
	Code            string           `json:"code"`
	Players         []PlayerSnapshot `json:"players"`
	Status          RoomStatus       `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	HostID          PlayerID         `json:"hostId"`
	CurrentStep     int              `json:"currentStep"`
	CurrentMission  int              `json:"currentMission"`
	CompletedCities []string         `json:"completedCities"`
}

func (r *Room) Snapshot() RoomSnapshot {
	players := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p.Snapshot())
	}
	cities := make([]string, 0, len(r.CompletedCities))
	for city := range r.CompletedCities {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	return RoomSnapshot{
		Code:            r.Code,
		Players:         players,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
		HostID:          r.HostID,
		CurrentStep:     r.CurrentStep,
		CurrentMission:  r.CurrentMission,
		CompletedCities: cities,
	}
}
