// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const MaxNameLen = 36

var (
	ErrNameEmpty   = errors.New("name empty")
	ErrNameTooLong = errors.New("name too long")
)

// PlayerID is the opaque per-connection identifier. It is stable for the
// lifetime of one connection and never reused across reconnects.
type PlayerID string

// Role is one of the two mutually exclusive capabilities a player can hold
// inside a room. RoleNone means the player has not picked yet.
type Role string

const (
	RoleNone     Role = ""
	RoleAgent    Role = "agent"
	RoleOperator Role = "operator"
)

// ParseRole maps a wire value onto a Role. Only the two known roles are
// accepted; clearing a role is expressed by the caller, not by ParseRole.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAgent, RoleOperator:
		return Role(s), true
	}
	return RoleNone, false
}

type Player struct {
	ID       PlayerID
	Name     string
	Role     Role
	IsReady  bool
	JoinedAt time.Time
}

// NewPlayer avoids raw literals in adapters and keeps construction obvious.
func NewPlayer(id PlayerID, name string) (*Player, error) {
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	return &Player{
		ID:       id,
		Name:     name,
		JoinedAt: time.Now(),
	}, nil
}

// PlayerSnapshot is a read-only view for the wire (no internal fields).
type PlayerSnapshot struct {
	ID       PlayerID  `json:"id"`
	Name     string    `json:"name"`
	Role     Role      `json:"role,omitempty"`
	IsReady  bool      `json:"isReady"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (p *Player) Snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Role:     p.Role,
		IsReady:  p.IsReady,
		JoinedAt: p.JoinedAt,
	}
}
