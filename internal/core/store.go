package core

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/domain"
)

const (
	codeLength   = 5
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	defaultChatHistory = 50
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{5}$`)

// NormalizeCode uppercases and trims a client-supplied room code. Codes are
// case-insensitive on input.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidCode reports whether code has the exact shape the generator produces.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Store is the single owned registry of rooms plus the reverse index from
// player (connection) id to room code. One lock guards every
// read-modify-write cycle, which is what keeps the invariants safe: at any
// instant exactly one operation touches a given room.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]*domain.Room
	playerToRoom map[domain.PlayerID]string

	chatHistory int
	onEvict     func(domain.RoomSnapshot)
}

func NewStore(chatHistory int) *Store {
	if chatHistory <= 0 {
		chatHistory = defaultChatHistory
	}
	return &Store{
		rooms:        make(map[string]*domain.Room),
		playerToRoom: make(map[domain.PlayerID]string),
		chatHistory:  chatHistory,
	}
}

// SetEvictFunc installs a callback invoked (outside the store lock) for every
// room removed by the idle sweeper, so the transport can tell its members.
func (s *Store) SetEvictFunc(fn func(domain.RoomSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// newCode draws codes until one misses every live room. The caller must hold
// the write lock. With 36^5 codes collisions are rare; the loop is insurance.
func (s *Store) newCode() string {
	buf := make([]byte, codeLength)
	for {
		for i := range buf {
			buf[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := s.rooms[code]; !taken {
			return code
		}
	}
}

// CreateRoom allocates a fresh room with hostID as its sole occupant and
// registers it under a unique code.
func (s *Store) CreateRoom(hostID domain.PlayerID, hostName string) (domain.RoomSnapshot, error) {
	host, err := domain.NewPlayer(hostID, hostName)
	if err != nil {
		return domain.RoomSnapshot{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, tracked := s.playerToRoom[hostID]; tracked {
		return domain.RoomSnapshot{}, ErrAlreadyInRoom
	}

	code := s.newCode()
	room := domain.NewRoom(code, host)
	s.rooms[code] = room
	s.playerToRoom[hostID] = code

	log.Info().Str("module", "core.store").Str("code", code).Str("host", hostName).Msg("room created")
	return room.Snapshot(), nil
}

// GetRoom returns a snapshot of the room registered under code, if any.
func (s *Store) GetRoom(code string) (domain.RoomSnapshot, bool) {
	code = NormalizeCode(code)
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	return room.Snapshot(), true
}

// DeleteRoom drops a room and every reverse-index entry pointing at it.
func (s *Store) DeleteRoom(code string) {
	code = NormalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteRoomLocked(code)
}

func (s *Store) deleteRoomLocked(code string) {
	room, ok := s.rooms[code]
	if !ok {
		return
	}
	for _, p := range room.Players {
		delete(s.playerToRoom, p.ID)
	}
	delete(s.rooms, code)
	log.Info().Str("module", "core.store").Str("code", code).Msg("room deleted")
}

// ListRooms enumerates every live room, for the diagnostic HTTP surface.
func (s *Store) ListRooms() []domain.RoomSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomSnapshot, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room.Snapshot())
	}
	return out
}

// Stats reports live room and tracked player counts.
func (s *Store) Stats() (rooms, players int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms), len(s.playerToRoom)
}

// RoomCodeFor resolves the room a connection is currently joined to.
func (s *Store) RoomCodeFor(id domain.PlayerID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.playerToRoom[id]
	return code, ok
}

// StartSweeper evicts rooms idle for longer than ttl, checking every
// interval, until ctx is done. Members of an evicted room are notified
// through the evict callback.
func (s *Store) StartSweeper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ttl)
			}
		}
	}()
}

func (s *Store) sweep(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var evicted []domain.RoomSnapshot
	for code, room := range s.rooms {
		if room.LastActive.Before(cutoff) {
			evicted = append(evicted, room.Snapshot())
			s.deleteRoomLocked(code)
		}
	}
	onEvict := s.onEvict
	s.mu.Unlock()

	if onEvict == nil {
		return
	}
	for _, snap := range evicted {
		log.Info().Str("module", "core.store").Str("code", snap.Code).Msg("room evicted (idle)")
		onEvict(snap)
	}
}
