package engine

import "sort"

// Personality biases the bot's card choice.
type Personality string

const (
	PersonalityAggressive Personality = "AGGRESSIVE"
	PersonalityDefensive  Personality = "DEFENSIVE"
	PersonalityTrickster  Personality = "TRICKSTER"
)

// MoveKind distinguishes the two turn actions.
type MoveKind int

const (
	MoveDraw MoveKind = iota
	MovePlay
)

// Move is a bot decision. Shape is set when Card is a WHOT.
type Move struct {
	Kind  MoveKind
	Card  Card
	Shape Shape
}

// ChooseMove picks a move for seat idx. It never returns an illegal play:
// with no valid card it draws.
func ChooseMove(s *GameState, idx int, pers Personality, rng RandSource) Move {
	valid := ValidMoves(s, idx)
	if len(valid) == 0 {
		return Move{Kind: MoveDraw}
	}
	hand := s.Players[idx].Hand

	pick := func(c Card) Move {
		m := Move{Kind: MovePlay, Card: c}
		if c.IsWhot() {
			m.Shape = ChooseShape(hand, c.ID, rng)
		}
		return m
	}

	switch pers {
	case PersonalityAggressive:
		threatened := opponentLow(s, idx, 2)
		for _, c := range valid {
			switch c.Number {
			case NumberPickTwo, NumberPickThree, NumberGeneralMarket, NumberWhot:
				if threatened || rng.IntN(2) == 0 {
					return pick(c)
				}
			}
		}
	case PersonalityDefensive:
		if len(hand) < 4 {
			for _, c := range valid {
				if c.Number == NumberHoldOn || c.Number == NumberSuspension {
					return pick(c)
				}
			}
		}
	case PersonalityTrickster:
		for _, c := range valid {
			if c.IsWhot() && rng.IntN(5) < 2 {
				return pick(c)
			}
		}
	}

	// Shed the heaviest card to keep the hand value down.
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Number > valid[j].Number })
	return pick(valid[0])
}

// ChooseShape names the ordinary shape the hand holds most of, excluding
// the card being played. Ties break randomly.
func ChooseShape(hand []Card, playing string, rng RandSource) Shape {
	counts := make(map[Shape]int, len(OrdinaryShapes))
	for _, c := range hand {
		if c.ID == playing || c.IsWhot() {
			continue
		}
		counts[c.Shape]++
	}
	best := -1
	var top []Shape
	for _, sh := range OrdinaryShapes {
		switch n := counts[sh]; {
		case n > best:
			best = n
			top = []Shape{sh}
		case n == best:
			top = append(top, sh)
		}
	}
	return top[rng.IntN(len(top))]
}

func opponentLow(s *GameState, idx, limit int) bool {
	for i := range s.Players {
		if i != idx && !s.Players[i].IsSpectator && len(s.Players[i].Hand) <= limit {
			return true
		}
	}
	return false
}
