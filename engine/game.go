// Package engine implements the Whot card game rules.
//
// Every function is pure apart from in-place mutation of the GameState it
// is handed; randomness comes only from the injected RandSource, so a
// seeded source replays a match exactly. The session server and solo
// clients share this package.
package engine

import "fmt"

// RandSource supplies uniform integers in [0, n). *math/rand/v2.Rand
// satisfies it.
type RandSource interface {
	IntN(n int) int
}

// ---------------------------------------------------------------------------
// Deck
// ---------------------------------------------------------------------------

// NewDeck returns the 54-card Whot deck in a fixed order.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, sh := range OrdinaryShapes {
		for _, n := range ordinaryNumbers {
			deck = append(deck, Card{ID: fmt.Sprintf("%s-%d", sh, n), Shape: sh, Number: n})
		}
	}
	for i := 1; i <= 4; i++ {
		deck = append(deck, Card{ID: fmt.Sprintf("%s-%d", ShapeWhot, i), Shape: ShapeWhot, Number: NumberWhot})
	}
	return deck
}

// Shuffle permutes cards in place (Fisher-Yates).
func Shuffle(cards []Card, rng RandSource) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// ---------------------------------------------------------------------------
// NewGame
// ---------------------------------------------------------------------------

// NewGame shuffles a fresh deck, deals HandSize cards to each seat and
// flips the starting discard. A WHOT start leaves the first seat owing a
// shape selection.
func NewGame(seats []PlayerState, mode GameMode, rng RandSource) (*GameState, error) {
	if len(seats) < MinPlayers {
		return nil, ErrNotEnoughPlayers
	}
	if len(seats) > MaxPlayers {
		return nil, ErrTooManyPlayers
	}
	seen := make(map[string]bool, len(seats))
	for _, p := range seats {
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayerID, p.ID)
		}
		seen[p.ID] = true
	}
	if mode != ModeChaos {
		mode = ModeClassic
	}

	deck := NewDeck()
	Shuffle(deck, rng)

	s := &GameState{
		Players:          make([]PlayerState, len(seats)),
		TurnDirection:    1,
		Status:           StatusPlaying,
		GameMode:         mode,
		Logs:             []string{"Game started! No dulling."},
		LastCardDeclared: []string{},
	}
	for i, p := range seats {
		hand := make([]Card, HandSize)
		copy(hand, deck[len(deck)-HandSize:])
		deck = deck[:len(deck)-HandSize]
		s.Players[i] = PlayerState{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Hand: hand}
	}

	top := deck[len(deck)-1]
	s.DrawPile = deck[:len(deck)-1]
	s.DiscardPile = []Card{top}
	s.CurrentShape = top.Shape
	s.CurrentNumber = top.Number
	s.Explanation = fmt.Sprintf("Matched %s", top.Shape)
	if top.IsWhot() {
		s.AwaitingShapeSelection = s.Players[0].ID
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// PlayerIndex returns the seat of id, or -1.
func (s *GameState) PlayerIndex(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// CurrentPlayer returns the seat whose turn it is, or nil for an empty table.
func (s *GameState) CurrentPlayer() *PlayerState {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return nil
	}
	return &s.Players[s.CurrentPlayerIndex]
}

// TopCard returns the top of the discard pile.
func (s *GameState) TopCard() (Card, bool) {
	if len(s.DiscardPile) == 0 {
		return Card{}, false
	}
	return s.DiscardPile[len(s.DiscardPile)-1], true
}

// ActivePlayers counts seats that are not spectators.
func (s *GameState) ActivePlayers() int {
	n := 0
	for i := range s.Players {
		if !s.Players[i].IsSpectator {
			n++
		}
	}
	return n
}

// CardCount totals cards across both piles and every hand. It equals
// DeckSize for the whole life of a match.
func (s *GameState) CardCount() int {
	n := len(s.DrawPile) + len(s.DiscardPile)
	for i := range s.Players {
		n += len(s.Players[i].Hand)
	}
	return n
}

// HasDeclaredLastCard reports whether id has called last card.
func (s *GameState) HasDeclaredLastCard(id string) bool {
	for _, d := range s.LastCardDeclared {
		if d == id {
			return true
		}
	}
	return false
}

func (s *GameState) appendLog(format string, args ...any) {
	s.Logs = append(s.Logs, fmt.Sprintf(format, args...))
	if len(s.Logs) > LogLimit {
		s.Logs = s.Logs[len(s.Logs)-LogLimit:]
	}
}
