package handlers

import (
	"encoding/json"

	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/models"
)

// Command names an inbound message. The string is the wire name.
type Command string

const (
	CmdCreateRoom          Command = "create-room"
	CmdJoinRoom            Command = "join-room"
	CmdReconnectRoom       Command = "reconnect-room"
	CmdPlayerReady         Command = "player-ready"
	CmdStartGame           Command = "start-game"
	CmdPlayCard            Command = "play-card"
	CmdDrawCard            Command = "draw-card"
	CmdSelectShape         Command = "select-shape"
	CmdCallLastCard        Command = "call-last-card"
	CmdChatMessage         Command = "chat-message"
	CmdPauseGame           Command = "pause-game"
	CmdResumeGame          Command = "resume-game"
	CmdLeaveRoom           Command = "leave-room"
	CmdReplaceDisconnected Command = "replace-disconnected-player"
	CmdCreateTournament    Command = "create-tournament"
	CmdJoinTournament      Command = "join-tournament"
	CmdLeaveTournament     Command = "leave-tournament"
	CmdStartTournament     Command = "start-tournament"
)

// Envelope is one inbound frame.
type Envelope struct {
	Type    Command         `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CreateRoomPayload carries the room config fields inline next to the
// creator's identity.
type CreateRoomPayload struct {
	MaxPlayers int               `json:"maxPlayers"`
	GameMode   engine.GameMode   `json:"gameMode"`
	SpeedMode  models.SpeedMode  `json:"speedMode"`
	Skin       string            `json:"skin"`
	EnableChat *bool             `json:"enableChat"`
	PlayerData models.PlayerData `json:"playerData"`
}

func (p CreateRoomPayload) config() models.RoomConfig {
	return models.RoomConfig{
		MaxPlayers: p.MaxPlayers,
		GameMode:   p.GameMode,
		SpeedMode:  p.SpeedMode,
		Skin:       p.Skin,
		EnableChat: p.EnableChat,
	}
}

type JoinRoomPayload struct {
	RoomCode   string            `json:"roomCode"`
	PlayerData models.PlayerData `json:"playerData"`
}

type ReconnectRoomPayload struct {
	RoomCode     string            `json:"roomCode"`
	PlayerData   models.PlayerData `json:"playerData"`
	SessionToken string            `json:"sessionToken,omitempty"`
}

type ReplacePayload struct {
	PlayerID string `json:"playerId"`
}

type CreateTournamentPayload struct {
	Name            string            `json:"name"`
	MaxParticipants int               `json:"maxParticipants"`
	PlayerData      models.PlayerData `json:"playerData"`
}

type JoinTournamentPayload struct {
	TournamentID string            `json:"tournamentId"`
	PlayerData   models.PlayerData `json:"playerData"`
}

// SessionPayload is sent after every successful seat so the client can
// reconnect later.
type SessionPayload struct {
	Token    string `json:"token"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}
