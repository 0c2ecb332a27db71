// Package core is the authoritative room/session coordinator. It owns all
// room and membership state; adapters never mutate entities directly.
package core

// Error is a typed, connection-scoped failure. Code is a stable
// machine-readable token clients can branch on; Message is for humans.
// No Error is ever fatal to the process.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrNameRequired = &Error{Code: "NAME_REQUIRED", Message: "a display name is required"}
	ErrCodeRequired = &Error{Code: "CODE_REQUIRED", Message: "a room code is required"}
	ErrRoomNotFound = &Error{Code: "ROOM_NOT_FOUND", Message: "room not found"}
	ErrRoomFull     = &Error{Code: "ROOM_FULL", Message: "room is full (max 2 players)"}
	ErrGameStarted  = &Error{Code: "GAME_STARTED", Message: "the game has already started"}
	ErrNotInRoom    = &Error{Code: "NOT_IN_ROOM", Message: "you are not in a room"}
	ErrRoleTaken    = &Error{Code: "ROLE_TAKEN", Message: "that role is already taken"}
	ErrNotHost      = &Error{Code: "NOT_HOST", Message: "only the host can start the game"}
	ErrStartFailed  = &Error{Code: "START_FAILED", Message: "both players must pick a role and be ready"}
	ErrUpdateFailed = &Error{Code: "UPDATE_FAILED", Message: "unable to apply the update"}

	// ErrAlreadyInRoom shares the generic code: clients just need to know the
	// call did not go through, and why, in the message.
	ErrAlreadyInRoom = &Error{Code: "UPDATE_FAILED", Message: "already in a room"}
)
