// Package models holds the value types exchanged with clients.
package models

import (
	"time"

	"github.com/jason-s-yu/whot/engine"
)

// PlayerData identifies a player as the client describes itself.
type PlayerData struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Valid reports whether the data carries the fields every room needs.
func (p PlayerData) Valid() bool {
	return p.ID != "" && p.Name != ""
}

// SpeedMode is a cosmetic pacing label carried through to clients. Every
// mode currently uses the room's configured turn duration.
type SpeedMode string

const (
	SpeedNormal SpeedMode = "NORMAL"
	SpeedFast   SpeedMode = "FAST"
	SpeedBlitz  SpeedMode = "BLITZ"
)

// RoomConfig is supplied by the host at room creation.
type RoomConfig struct {
	MaxPlayers int             `json:"maxPlayers,omitempty"`
	GameMode   engine.GameMode `json:"gameMode,omitempty"`
	SpeedMode  SpeedMode       `json:"speedMode,omitempty"`
	Skin       string          `json:"skin,omitempty"`
	EnableChat *bool           `json:"enableChat,omitempty"`
}

// ChatEnabled defaults to true when the host did not say.
func (c RoomConfig) ChatEnabled() bool {
	return c.EnableChat == nil || *c.EnableChat
}

// Normalize fills defaults and clamps the player limit to what the
// engine can deal.
func (c RoomConfig) Normalize(defaultMax int) RoomConfig {
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = defaultMax
	}
	if c.MaxPlayers < engine.MinPlayers {
		c.MaxPlayers = engine.MinPlayers
	}
	if c.MaxPlayers > engine.MaxPlayers {
		c.MaxPlayers = engine.MaxPlayers
	}
	if c.GameMode != engine.ModeChaos {
		c.GameMode = engine.ModeClassic
	}
	if c.SpeedMode == "" {
		c.SpeedMode = SpeedNormal
	}
	if c.Skin == "" {
		c.Skin = "ANKARA"
	}
	return c
}

// Player is a roster entry of a room.
type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar,omitempty"`
	ConnID      string    `json:"-"`
	IsReady     bool      `json:"isReady"`
	IsConnected bool      `json:"isConnected"`
	IsSpectator bool      `json:"isSpectator"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joinedAt"`
	LastSeen    time.Time `json:"-"`
}

// ChatMessage is one line of room chat.
type ChatMessage struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// ResultPlayer is one seat in a finished match.
type ResultPlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	CardsLeft int    `json:"cardsLeft"`
	Spectator bool   `json:"spectator"`
}

// MatchResult summarizes a finished match for archiving and tournament
// bookkeeping.
type MatchResult struct {
	RoomID       string          `json:"roomId"`
	RoomCode     string          `json:"roomCode"`
	TournamentID string          `json:"tournamentId,omitempty"`
	MatchID      string          `json:"matchId,omitempty"`
	GameMode     engine.GameMode `json:"gameMode"`
	WinnerID     string          `json:"winnerId,omitempty"`
	Players      []ResultPlayer  `json:"players"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
}
