package engine

import "fmt"

// actorIndex runs the guards shared by Play and Draw.
func (s *GameState) actorIndex(playerID string) (int, error) {
	if s.Status != StatusPlaying {
		return -1, ErrNotPlaying
	}
	if s.AwaitingShapeSelection != "" {
		return -1, ErrShapePending
	}
	idx := s.PlayerIndex(playerID)
	if idx == -1 {
		return -1, ErrPlayerNotFound
	}
	if s.Players[idx].IsSpectator {
		return -1, ErrSpectator
	}
	if idx != s.CurrentPlayerIndex {
		return -1, ErrNotYourTurn
	}
	return idx, nil
}

// Play moves cardID from the player's hand onto the discard pile and
// applies its effect. State is untouched when an error is returned.
func Play(s *GameState, playerID, cardID string, rng RandSource) (Card, error) {
	idx, err := s.actorIndex(playerID)
	if err != nil {
		return Card{}, err
	}
	p := &s.Players[idx]
	ci := -1
	for i, c := range p.Hand {
		if c.ID == cardID {
			ci = i
			break
		}
	}
	if ci == -1 {
		return Card{}, ErrCardNotInHand
	}
	card := p.Hand[ci]
	if !IsValidMove(card, s) {
		return Card{}, ErrInvalidMove
	}

	p.Hand = append(p.Hand[:ci], p.Hand[ci+1:]...)
	s.DiscardPile = append(s.DiscardPile, card)

	u := ApplyRules(card, s)
	s.CurrentShape = u.CurrentShape
	s.CurrentNumber = u.CurrentNumber
	s.CurrentPlayerIndex = u.CurrentPlayerIndex
	s.PendingPicks = u.PendingPicks
	s.TurnDirection = u.TurnDirection
	s.Explanation = u.Explanation
	s.appendLog("%s played %s", p.Name, card)

	if u.GeneralMarket {
		for i := range s.Players {
			if i == idx || s.Players[i].IsSpectator {
				continue
			}
			s.drawInto(i, 1, rng)
		}
	}
	if u.AwaitShape {
		s.AwaitingShapeSelection = p.ID
	}

	if len(s.Players[idx].Hand) == 0 {
		s.finish(s.Players[idx].ID)
	}
	return card, nil
}

// Draw gives the current player max(1, PendingPicks) cards, clears the
// penalty and passes the turn. It returns the number of cards actually
// drawn, which is short when the deck runs dry.
func Draw(s *GameState, playerID string, rng RandSource) (int, error) {
	idx, err := s.actorIndex(playerID)
	if err != nil {
		return 0, err
	}
	want := s.PendingPicks
	if want < 1 {
		want = 1
	}
	got := s.drawInto(idx, want, rng)
	s.PendingPicks = 0
	s.CurrentPlayerIndex = NextActiveIndex(s, 1)
	if got == 1 {
		s.appendLog("%s drew a card", s.Players[idx].Name)
	} else {
		s.appendLog("%s drew %d cards", s.Players[idx].Name, got)
	}
	return got, nil
}

// ResolveShape completes a WHOT play by declaring the shape to follow.
func ResolveShape(s *GameState, playerID string, shape Shape) error {
	if s.Status != StatusPlaying {
		return ErrNotPlaying
	}
	if s.AwaitingShapeSelection == "" || s.AwaitingShapeSelection != playerID {
		return ErrNoShapePending
	}
	idx := s.PlayerIndex(playerID)
	if idx == -1 {
		return ErrPlayerNotFound
	}
	if idx != s.CurrentPlayerIndex {
		return ErrNotYourTurn
	}
	if !shape.IsOrdinary() {
		return ErrInvalidShape
	}
	s.setShape(shape)
	s.appendLog("%s called %s", s.Players[idx].Name, shape)
	return nil
}

// setShape declares the shape after a WHOT and passes the turn.
func (s *GameState) setShape(shape Shape) {
	s.CurrentShape = shape
	s.CurrentNumber = NumberWhot
	s.CurrentPlayerIndex = NextActiveIndex(s, 1)
	s.AwaitingShapeSelection = ""
}

func randomShape(rng RandSource) Shape {
	return OrdinaryShapes[rng.IntN(len(OrdinaryShapes))]
}

// ApplyTimeout is the turn-clock fallback. A pending WHOT selection gets a
// random shape; otherwise the current player draws TimeoutPenalty cards
// regardless of any pending picks, which are cleared.
func ApplyTimeout(s *GameState, rng RandSource) TimeoutOutcome {
	if s.Status != StatusPlaying || len(s.Players) == 0 {
		return TimeoutOutcome{}
	}
	if s.AwaitingShapeSelection != "" {
		out := TimeoutOutcome{PlayerID: s.AwaitingShapeSelection, ForcedShape: randomShape(rng)}
		name := out.PlayerID
		if i := s.PlayerIndex(out.PlayerID); i != -1 {
			name = s.Players[i].Name
		}
		s.setShape(out.ForcedShape)
		s.appendLog("%s ran out of time; shape set to %s", name, out.ForcedShape)
		return out
	}
	idx := s.CurrentPlayerIndex
	p := &s.Players[idx]
	out := TimeoutOutcome{PlayerID: p.ID}
	out.Drawn = s.drawInto(idx, TimeoutPenalty, rng)
	s.PendingPicks = 0
	s.CurrentPlayerIndex = NextActiveIndex(s, 1)
	s.appendLog("%s", TimeoutMessage(s.Players[idx].Name, out.Drawn))
	return out
}

// TimeoutMessage describes a timeout penalty of drawn cards. drawn can fall
// short of TimeoutPenalty when both piles run dry.
func TimeoutMessage(name string, drawn int) string {
	if drawn == 1 {
		return fmt.Sprintf("%s timed out and drew 1 penalty card!", name)
	}
	return fmt.Sprintf("%s timed out and drew %d penalty cards!", name, drawn)
}

// DeclareLastCard records that playerID holds a single card. Repeat calls
// are no-ops.
func DeclareLastCard(s *GameState, playerID string) error {
	if s.Status != StatusPlaying {
		return ErrNotPlaying
	}
	idx := s.PlayerIndex(playerID)
	if idx == -1 {
		return ErrPlayerNotFound
	}
	if len(s.Players[idx].Hand) != 1 {
		return ErrNotLastCard
	}
	if s.HasDeclaredLastCard(playerID) {
		return nil
	}
	s.LastCardDeclared = append(s.LastCardDeclared, playerID)
	s.appendLog("%s: Last card!", s.Players[idx].Name)
	return nil
}

// RemovePlayer takes playerID out of the match. Their hand goes beneath
// the draw pile, a WHOT selection they owe is resolved at random, and the
// turn index is kept pointing at the same logical next player. It
// reports whether the player was seated.
func RemovePlayer(s *GameState, playerID string, rng RandSource) bool {
	idx := s.PlayerIndex(playerID)
	if idx == -1 {
		return false
	}
	if s.Status == StatusPlaying && s.AwaitingShapeSelection == playerID {
		shape := randomShape(rng)
		s.setShape(shape)
		s.appendLog("%s left; shape set to %s", s.Players[idx].Name, shape)
	}

	name := s.Players[idx].Name
	hand := s.Players[idx].Hand
	s.DrawPile = append(append(make([]Card, 0, len(hand)+len(s.DrawPile)), hand...), s.DrawPile...)
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	s.dropLastCard(playerID)

	n := len(s.Players)
	switch {
	case n == 0:
		s.CurrentPlayerIndex = 0
	case idx < s.CurrentPlayerIndex:
		s.CurrentPlayerIndex--
	case idx == s.CurrentPlayerIndex:
		// The seat after the leaver slid into idx.
		if s.TurnDirection < 0 {
			s.CurrentPlayerIndex = idx - 1
		}
		s.CurrentPlayerIndex = ((s.CurrentPlayerIndex % n) + n) % n
	}
	if n > 0 && s.CurrentPlayerIndex >= n {
		s.CurrentPlayerIndex = n - 1
	}
	s.settleOnActive()
	s.appendLog("%s left the game", name)
	s.finishIfDecided()
	return true
}

// MarkSpectator converts playerID to a non-playing seat. The seat keeps its
// cards; the turn moves on if it was theirs.
func MarkSpectator(s *GameState, playerID string, rng RandSource) bool {
	idx := s.PlayerIndex(playerID)
	if idx == -1 || s.Players[idx].IsSpectator {
		return false
	}
	if s.Status == StatusPlaying && s.AwaitingShapeSelection == playerID {
		s.setShape(randomShape(rng))
	}
	s.Players[idx].IsSpectator = true
	s.dropLastCard(playerID)
	s.settleOnActive()
	s.appendLog("%s is now spectating", s.Players[idx].Name)
	s.finishIfDecided()
	return true
}

// settleOnActive moves the turn off a spectator seat.
func (s *GameState) settleOnActive() {
	cur := s.CurrentPlayer()
	if cur == nil || !cur.IsSpectator || s.ActivePlayers() == 0 {
		return
	}
	s.CurrentPlayerIndex = NextActiveIndex(s, 1)
}

func (s *GameState) dropLastCard(playerID string) {
	out := s.LastCardDeclared[:0]
	for _, d := range s.LastCardDeclared {
		if d != playerID {
			out = append(out, d)
		}
	}
	s.LastCardDeclared = out
}

// drawInto moves up to n cards from the draw pile into seat idx, recycling
// the discard pile (minus its top card) when the draw pile empties.
func (s *GameState) drawInto(idx, n int, rng RandSource) int {
	got := 0
	for ; got < n; got++ {
		if len(s.DrawPile) == 0 {
			if len(s.DiscardPile) <= 1 {
				break
			}
			s.reshuffle(rng)
		}
		c := s.DrawPile[len(s.DrawPile)-1]
		s.DrawPile = s.DrawPile[:len(s.DrawPile)-1]
		s.Players[idx].Hand = append(s.Players[idx].Hand, c)
	}
	if len(s.Players[idx].Hand) > 1 {
		s.dropLastCard(s.Players[idx].ID)
	}
	return got
}

func (s *GameState) reshuffle(rng RandSource) {
	top := s.DiscardPile[len(s.DiscardPile)-1]
	pile := make([]Card, len(s.DiscardPile)-1)
	copy(pile, s.DiscardPile[:len(s.DiscardPile)-1])
	Shuffle(pile, rng)
	s.DrawPile = pile
	s.DiscardPile = []Card{top}
	s.appendLog("Market reshuffled")
}

// finishIfDecided ends a match that has at most one active seat left.
func (s *GameState) finishIfDecided() bool {
	if s.Status != StatusPlaying || s.ActivePlayers() > 1 {
		return false
	}
	winner := ""
	for i := range s.Players {
		if !s.Players[i].IsSpectator {
			winner = s.Players[i].ID
		}
	}
	s.finish(winner)
	return true
}

// finish closes the match. Each seat scores the face value left in hand.
func (s *GameState) finish(winnerID string) {
	s.Status = StatusFinished
	s.WinnerID = winnerID
	s.AwaitingShapeSelection = ""
	for i := range s.Players {
		s.Players[i].Score = HandValue(s.Players[i].Hand)
	}
	if i := s.PlayerIndex(winnerID); i != -1 {
		s.appendLog("%s wins!", s.Players[i].Name)
	} else {
		s.appendLog("Game over")
	}
}

// HandValue sums card numbers; lower is better.
func HandValue(hand []Card) int {
	v := 0
	for _, c := range hand {
		v += c.Number
	}
	return v
}
