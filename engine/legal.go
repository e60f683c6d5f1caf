package engine

// IsValidMove reports whether c may be played on s.
//
// While a penalty is pending only a 2 on a 2 or a 5 on a 5 is legal; a
// WHOT does not escape it. A pending shape selection blocks every card.
func IsValidMove(c Card, s *GameState) bool {
	if s.AwaitingShapeSelection != "" {
		return false
	}
	if s.PendingPicks > 0 {
		switch {
		case c.Number == NumberPickTwo && s.CurrentNumber == NumberPickTwo && !c.IsWhot():
			return true
		case c.Number == NumberPickThree && s.CurrentNumber == NumberPickThree && !c.IsWhot():
			return true
		}
		return false
	}
	if c.IsWhot() {
		return true
	}
	return c.Shape == s.CurrentShape || c.Number == s.CurrentNumber
}

// ValidMoves returns the cards in seat idx's hand that IsValidMove accepts.
func ValidMoves(s *GameState, idx int) []Card {
	if idx < 0 || idx >= len(s.Players) {
		return nil
	}
	var out []Card
	for _, c := range s.Players[idx].Hand {
		if IsValidMove(c, s) {
			out = append(out, c)
		}
	}
	return out
}

// NextPlayerIndex is (current + direction*skip) mod n, normalized to
// [0, n). An empty table yields 0.
func NextPlayerIndex(s *GameState, skip int) int {
	n := len(s.Players)
	if n == 0 {
		return 0
	}
	next := (s.CurrentPlayerIndex + s.TurnDirection*skip) % n
	for next < 0 {
		next += n
	}
	return next % n
}

// NextActiveIndex walks skip non-spectator seats from the current one in
// the turn direction. With no spectators it equals NextPlayerIndex. If no
// other seat is active the current index is returned.
func NextActiveIndex(s *GameState, skip int) int {
	n := len(s.Players)
	if n == 0 {
		return 0
	}
	if s.ActivePlayers() == 0 {
		return NextPlayerIndex(s, skip)
	}
	dir := s.TurnDirection
	if dir == 0 {
		dir = 1
	}
	idx := s.CurrentPlayerIndex
	for moved := 0; moved < skip; {
		idx = ((idx+dir)%n + n) % n
		if !s.Players[idx].IsSpectator {
			moved++
		}
	}
	return idx
}
