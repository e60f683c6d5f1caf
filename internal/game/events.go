// internal/game/events.go
package game

import (
	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/models"
)

// EventType names an outbound message. The string is the wire name.
type EventType string

const (
	EventRoomCreated           EventType = "room-created"
	EventRoomJoined            EventType = "room-joined"
	EventPlayerJoined          EventType = "player-joined"
	EventPlayerLeft            EventType = "player-left"
	EventPlayerReadyUpdate     EventType = "player-ready-update"
	EventHostChanged           EventType = "host-changed"
	EventRoomUpdated           EventType = "room-updated"
	EventGameStarted           EventType = "game-started"
	EventGameStateUpdate       EventType = "game-state-update"
	EventMoveInvalid           EventType = "move-invalid"
	EventError                 EventType = "error"
	EventGamePaused            EventType = "game-paused"
	EventReconnectionCountdown EventType = "reconnection-countdown"
	EventGameResumed           EventType = "game-resumed"
	EventPlayerBecameSpectator EventType = "player-became-spectator"
	EventChatMessage           EventType = "chat-message"
	EventPenaltyNotification   EventType = "penalty-notification"
	EventSession               EventType = "session"

	EventTournamentCreated      EventType = "tournament-created"
	EventTournamentJoined       EventType = "tournament-joined"
	EventTournamentUpdated      EventType = "tournament-updated"
	EventTournamentMatchStarted EventType = "tournament-match-started"
	EventTournamentMatchEnded   EventType = "tournament-match-ended"
	EventTournamentCompleted    EventType = "tournament-completed"
)

// Event is the envelope written to clients.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Pause reasons carried in game-paused.
const (
	PauseReasonDisconnect = "player_disconnected"
	PauseReasonHost       = "host_paused"
)

// RoomView is the public description of a room.
type RoomView struct {
	ID                  string            `json:"id"`
	Code                string            `json:"code"`
	HostID              string            `json:"hostId"`
	Status              RoomStatus        `json:"status"`
	Config              models.RoomConfig `json:"config"`
	Players             []models.Player   `json:"players"`
	PlayerCount         int               `json:"playerCount"`
	MaxPlayers          int               `json:"maxPlayers"`
	Paused              bool              `json:"isPaused"`
	DisconnectedPlayers []string          `json:"disconnectedPlayers"`
	TournamentID        string            `json:"tournamentId,omitempty"`
	MatchID             string            `json:"matchId,omitempty"`
}

// PlayerView is one seat as seen by a particular viewer. Hand is nil for
// everyone but the viewer.
type PlayerView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Avatar      string        `json:"avatar,omitempty"`
	Hand        []engine.Card `json:"hand"`
	HandCount   int           `json:"handCount"`
	IsSpectator bool          `json:"isSpectator"`
	IsConnected bool          `json:"isConnected"`
	Score       int           `json:"score"`
}

// GameView is a personalized match snapshot.
type GameView struct {
	RoomID                 string               `json:"roomId"`
	HostID                 string               `json:"hostId"`
	Status                 engine.Status        `json:"status"`
	Players                []PlayerView         `json:"players"`
	CurrentPlayerIndex     int                  `json:"currentPlayerIndex"`
	CurrentPlayerID        string               `json:"currentPlayerId"`
	CurrentShape           engine.Shape         `json:"currentShape"`
	CurrentNumber          int                  `json:"currentNumber"`
	PendingPicks           int                  `json:"pendingPicks"`
	TurnDirection          int                  `json:"turnDirection"`
	AwaitingShapeSelection string               `json:"awaitingShapeSelection,omitempty"`
	WinnerID               string               `json:"winnerId,omitempty"`
	GameMode               engine.GameMode      `json:"gameMode"`
	SpeedMode              models.SpeedMode     `json:"speedMode"`
	Skin                   string               `json:"skin"`
	DrawPileCount          int                  `json:"drawPileCount"`
	DiscardTop             *engine.Card         `json:"discardTop,omitempty"`
	DiscardCount           int                  `json:"discardCount"`
	Logs                   []string             `json:"logs"`
	LastCardDeclared       []string             `json:"lastCardDeclared"`
	Explanation            string               `json:"explanation"`
	ChatHistory            []models.ChatMessage `json:"chatHistory"`
	TurnTimeLeft           int                  `json:"turnTimeLeft"`
	IsPaused               bool                 `json:"isPaused"`
}

type GameStartedPayload struct {
	Room                   RoomView  `json:"room"`
	GameState              *GameView `json:"gameState"`
	AwaitingShapeSelection string    `json:"awaitingShapeSelection,omitempty"`
}

type GameStatePayload struct {
	GameState              *GameView `json:"gameState"`
	AwaitingShapeSelection string    `json:"awaitingShapeSelection,omitempty"`
}

type PlayerLeftPayload struct {
	PlayerID string   `json:"playerId"`
	Room     RoomView `json:"room"`
}

type GamePausedPayload struct {
	Reason             string `json:"reason"`
	DisconnectedPlayer string `json:"disconnectedPlayer,omitempty"`
	PlayerName         string `json:"playerName,omitempty"`
	Countdown          int    `json:"countdown,omitempty"`
}

type CountdownPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Countdown  int    `json:"countdown"`
}

type SpectatorPayload struct {
	PlayerID string `json:"playerId"`
}

type PenaltyPayload struct {
	PlayerID string `json:"playerId"`
	Message  string `json:"message"`
}

// ErrorPayload is sent with EventError. ClearSession tells the client to
// forget its stored auto-reconnect data.
type ErrorPayload struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	ClearSession bool   `json:"clearSession,omitempty"`
}

type MoveInvalidPayload struct {
	Error string `json:"error"`
}
