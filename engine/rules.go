package engine

import (
	"errors"
	"fmt"
)

const (
	DeckSize       = 54
	HandSize       = 6
	MinPlayers     = 2
	MaxPlayers     = 8
	LogLimit       = 50
	TimeoutPenalty = 2
)

// Move rejections. Messages are shown to players verbatim.
var (
	ErrNotPlaying        = errors.New("Game not in playing state")
	ErrShapePending      = errors.New("Shape selection pending")
	ErrPlayerNotFound    = errors.New("Player not found")
	ErrNotYourTurn       = errors.New("Not your turn")
	ErrCardNotInHand     = errors.New("Card not in hand")
	ErrInvalidMove       = errors.New("Invalid move")
	ErrNoShapePending    = errors.New("No shape selection pending")
	ErrInvalidShape      = errors.New("Invalid shape")
	ErrSpectator         = errors.New("Spectators cannot play")
	ErrNotLastCard       = errors.New("You can only call last card with one card left")
	ErrNotEnoughPlayers  = errors.New("Not enough players")
	ErrTooManyPlayers    = errors.New("Too many players")
	ErrDuplicatePlayerID = errors.New("Duplicate player id")
)

// ExplainCard returns the player-facing description of a card's effect.
func ExplainCard(c Card) string {
	switch c.Number {
	case NumberHoldOn:
		return "HOLD ON: Everyone waits, you play again!"
	case NumberPickTwo:
		return "PICK TWO: Next player draws 2 unless they have a 2!"
	case NumberPickThree:
		return "PICK THREE: Heavy market! Next player draws 3."
	case NumberSuspension:
		return "SUSPENSION: Next player skipped! Comot for road."
	case NumberGeneralMarket:
		return "GENERAL MARKET: Everyone else carries a basket (draw 1)."
	case NumberWhot:
		return "WHOT: Wild card played! Shape is being changed."
	default:
		return fmt.Sprintf("Matched %s %d. Normal move.", c.Shape, c.Number)
	}
}

// ApplyRules computes the effect of playing c on s. The caller must have
// checked IsValidMove first.
func ApplyRules(c Card, s *GameState) Update {
	u := Update{
		CurrentShape:       c.Shape,
		CurrentNumber:      c.Number,
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		PendingPicks:       s.PendingPicks,
		TurnDirection:      s.TurnDirection,
		Explanation:        ExplainCard(c),
	}

	switch c.Number {
	case NumberHoldOn:
	case NumberPickTwo:
		u.PendingPicks += 2
		u.CurrentPlayerIndex = NextActiveIndex(s, 1)
	case NumberPickThree:
		u.PendingPicks += 3
		u.CurrentPlayerIndex = NextActiveIndex(s, 1)
	case NumberSuspension:
		u.CurrentPlayerIndex = NextActiveIndex(s, 2)
	case NumberGeneralMarket:
		u.CurrentPlayerIndex = NextActiveIndex(s, 1)
		u.GeneralMarket = true
	case NumberWhot:
		u.AwaitShape = true
	default:
		u.CurrentPlayerIndex = NextActiveIndex(s, 1)
	}

	// Direction flips after the skip so the suspension still lands on the
	// player two seats along the old direction.
	if s.GameMode == ModeChaos && c.Number == NumberSuspension {
		u.TurnDirection = -s.TurnDirection
	}
	return u
}
