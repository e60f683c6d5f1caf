package game

import "errors"

// Room-level rejections. Move rejections come from the engine package.
var (
	ErrRoomClosed      = errors.New("room closed")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomNotJoinable = errors.New("room is not accepting players")
	ErrNotInRoom       = errors.New("player is not in this room")
	ErrNotHost         = errors.New("only the host can do that")
	ErrCannotStart     = errors.New("need at least 2 players, all ready")
	ErrGamePaused      = errors.New("Game is paused")
	ErrChatDisabled    = errors.New("chat is disabled in this room")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrPlayerConnected = errors.New("player is still connected")
	ErrInvalidPlayer   = errors.New("player id and name are required")
)
