package handlers

import (
	"errors"

	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/auth"
	"github.com/jason-s-yu/whot/internal/game"
	"github.com/jason-s-yu/whot/internal/tournament"
)

// Wire error types.
const (
	TypeRoomNotFound          = "ROOM_NOT_FOUND"
	TypeRoomFull              = "ROOM_FULL"
	TypeRoomNotJoinable       = "ROOM_NOT_JOINABLE"
	TypeNotInRoom             = "NOT_IN_ROOM"
	TypeReconnectFailed       = "RECONNECT_FAILED"
	TypeCannotStart           = "CANNOT_START"
	TypeNotHost               = "NOT_HOST"
	TypeConnectionNotReady    = "CONNECTION_NOT_READY"
	TypeCreateRoomFailed      = "CREATE_ROOM_FAILED"
	TypeInvalidPayload        = "INVALID_PAYLOAD"
	TypeRateLimited           = "RATE_LIMITED"
	TypeChatDisabled          = "CHAT_DISABLED"
	TypePlayerConnected       = "PLAYER_STILL_CONNECTED"
	TypeTournamentNotFound    = "TOURNAMENT_NOT_FOUND"
	TypeTournamentNotJoinable = "TOURNAMENT_NOT_JOINABLE"
	TypeTournamentFull        = "TOURNAMENT_FULL"
	TypeAlreadyJoined         = "ALREADY_JOINED"
	TypeNotInTournament       = "NOT_IN_TOURNAMENT"
	TypeServerError           = "SERVER_ERROR"
)

var (
	ErrRoomNotFound       = errors.New("Room not found")
	ErrConnectionNotReady = errors.New("Connection not ready")
	ErrInvalidPayload     = errors.New("Invalid payload")
	ErrRateLimited        = errors.New("Too many messages")
	ErrCreateRoomFailed   = errors.New("Failed to create room")
	ErrReconnectFailed    = errors.New("Failed to reconnect")
)

// errorTypes maps sentinels to wire types; the first match wins.
var errorTypes = []struct {
	err error
	typ string
}{
	{ErrRoomNotFound, TypeRoomNotFound},
	{ErrConnectionNotReady, TypeConnectionNotReady},
	{ErrInvalidPayload, TypeInvalidPayload},
	{ErrRateLimited, TypeRateLimited},
	{ErrCreateRoomFailed, TypeCreateRoomFailed},
	{ErrReconnectFailed, TypeReconnectFailed},

	{game.ErrRoomClosed, TypeRoomNotFound},
	{game.ErrRoomFull, TypeRoomFull},
	{game.ErrRoomNotJoinable, TypeRoomNotJoinable},
	{game.ErrNotInRoom, TypeNotInRoom},
	{game.ErrNotHost, TypeNotHost},
	{game.ErrCannotStart, TypeCannotStart},
	{game.ErrChatDisabled, TypeChatDisabled},
	{game.ErrEmptyMessage, TypeInvalidPayload},
	{game.ErrInvalidPlayer, TypeInvalidPayload},
	{game.ErrPlayerConnected, TypePlayerConnected},

	{auth.ErrExpiredToken, TypeReconnectFailed},
	{auth.ErrInvalidSignature, TypeReconnectFailed},
	{auth.ErrInvalidSigningAlg, TypeReconnectFailed},
	{auth.ErrCorruptedToken, TypeReconnectFailed},
	{auth.ErrTokenMismatch, TypeReconnectFailed},

	{tournament.ErrNotFound, TypeTournamentNotFound},
	{tournament.ErrNotJoinable, TypeTournamentNotJoinable},
	{tournament.ErrFull, TypeTournamentFull},
	{tournament.ErrAlreadyJoined, TypeAlreadyJoined},
	{tournament.ErrNotParticipant, TypeNotInTournament},
	{tournament.ErrNotHost, TypeNotHost},
	{tournament.ErrNotEnoughParticipants, TypeCannotStart},
}

// moveErrors are reported as move-invalid rather than error.
var moveErrors = []error{
	engine.ErrNotPlaying,
	engine.ErrShapePending,
	engine.ErrPlayerNotFound,
	engine.ErrNotYourTurn,
	engine.ErrCardNotInHand,
	engine.ErrInvalidMove,
	engine.ErrNoShapePending,
	engine.ErrInvalidShape,
	engine.ErrSpectator,
	engine.ErrNotLastCard,
	game.ErrGamePaused,
}

func isMoveError(err error) bool {
	for _, e := range moveErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func errorType(err error) string {
	for _, m := range errorTypes {
		if errors.Is(err, m.err) {
			return m.typ
		}
	}
	return TypeServerError
}

// clearsSession reports whether a failed reconnect attempt should make the
// client forget its stored session.
func clearsSession(cmd Command, typ string) bool {
	if typ == TypeReconnectFailed {
		return true
	}
	if cmd != CmdJoinRoom && cmd != CmdReconnectRoom {
		return false
	}
	switch typ {
	case TypeRoomNotFound, TypeRoomNotJoinable, TypeNotInRoom:
		return true
	}
	return false
}

// errorPayload builds the wire error for err raised by cmd.
func errorPayload(cmd Command, err error) game.ErrorPayload {
	typ := errorType(err)
	msg := err.Error()
	if typ == TypeServerError {
		msg = "Something went wrong"
	}
	return game.ErrorPayload{Type: typ, Message: msg, ClearSession: clearsSession(cmd, typ)}
}
