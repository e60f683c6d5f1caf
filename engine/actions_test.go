package engine

import (
	"reflect"
	"strings"
	"testing"
)

func clone(s *GameState) *GameState {
	c := *s
	c.Players = make([]PlayerState, len(s.Players))
	for i, p := range s.Players {
		p.Hand = append([]Card(nil), p.Hand...)
		c.Players[i] = p
	}
	c.DrawPile = append([]Card(nil), s.DrawPile...)
	c.DiscardPile = append([]Card(nil), s.DiscardPile...)
	c.Logs = append([]string(nil), s.Logs...)
	c.LastCardDeclared = append([]string{}, s.LastCardDeclared...)
	return &c
}

func TestPlayGuards(t *testing.T) {
	s := fixture(card(ShapeCircle, 7),
		[]Card{card(ShapeCircle, 3), card(ShapeStar, 4)},
		[]Card{card(ShapeCircle, 4)})

	if _, err := Play(s, "b", "CIRCLE-4", testRNG(1)); err != ErrNotYourTurn {
		t.Errorf("out of turn: err = %v", err)
	}
	if _, err := Play(s, "z", "CIRCLE-3", testRNG(1)); err != ErrPlayerNotFound {
		t.Errorf("unknown player: err = %v", err)
	}
	if _, err := Play(s, "a", "CIRCLE-4", testRNG(1)); err != ErrCardNotInHand {
		t.Errorf("foreign card: err = %v", err)
	}
	before := clone(s)
	if _, err := Play(s, "a", "STAR-4", testRNG(1)); err != ErrInvalidMove {
		t.Errorf("illegal card: err = %v", err)
	}
	if !reflect.DeepEqual(before, s) {
		t.Errorf("rejected play mutated state")
	}

	s.Status = StatusFinished
	if _, err := Play(s, "a", "CIRCLE-3", testRNG(1)); err != ErrNotPlaying {
		t.Errorf("finished: err = %v", err)
	}
}

func TestPlayEffects(t *testing.T) {
	three := func() [][]Card {
		return [][]Card{
			{card(ShapeCircle, 1), card(ShapeCircle, 2), card(ShapeCircle, 5), card(ShapeCircle, 8), card(ShapeCircle, 14), card(ShapeCircle, 3), whot(1)},
			{card(ShapeStar, 3), card(ShapeStar, 4)},
			{card(ShapeSquare, 3), card(ShapeSquare, 4)},
		}
	}

	t.Run("hold on", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), three()...)
		mustPlay(t, s, "a", "CIRCLE-1")
		if s.CurrentPlayerIndex != 0 {
			t.Errorf("index = %d, want 0", s.CurrentPlayerIndex)
		}
	})
	t.Run("pick two", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), three()...)
		mustPlay(t, s, "a", "CIRCLE-2")
		if s.PendingPicks != 2 || s.CurrentPlayerIndex != 1 {
			t.Errorf("picks=%d idx=%d, want 2/1", s.PendingPicks, s.CurrentPlayerIndex)
		}
		n, err := Draw(s, "b", testRNG(1))
		if err != nil || n != 2 {
			t.Fatalf("Draw = %d, %v; want 2", n, err)
		}
		if len(s.Players[1].Hand) != 4 || s.PendingPicks != 0 || s.CurrentPlayerIndex != 2 {
			t.Errorf("after draw hand=%d picks=%d idx=%d", len(s.Players[1].Hand), s.PendingPicks, s.CurrentPlayerIndex)
		}
		assertConserved(t, s)
	})
	t.Run("pick three", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), three()...)
		mustPlay(t, s, "a", "CIRCLE-5")
		if s.PendingPicks != 3 || s.CurrentPlayerIndex != 1 {
			t.Errorf("picks=%d idx=%d, want 3/1", s.PendingPicks, s.CurrentPlayerIndex)
		}
	})
	t.Run("suspension", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), three()...)
		mustPlay(t, s, "a", "CIRCLE-8")
		if s.CurrentPlayerIndex != 2 || s.TurnDirection != 1 {
			t.Errorf("idx=%d dir=%d, want 2/1", s.CurrentPlayerIndex, s.TurnDirection)
		}
	})
	t.Run("suspension chaos", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), three()...)
		s.GameMode = ModeChaos
		mustPlay(t, s, "a", "CIRCLE-8")
		if s.CurrentPlayerIndex != 2 || s.TurnDirection != -1 {
			t.Errorf("idx=%d dir=%d, want 2/-1", s.CurrentPlayerIndex, s.TurnDirection)
		}
	})
	t.Run("general market", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), three()...)
		mustPlay(t, s, "a", "CIRCLE-14")
		if len(s.Players[1].Hand) != 3 || len(s.Players[2].Hand) != 3 {
			t.Errorf("market hands = %d/%d, want 3/3", len(s.Players[1].Hand), len(s.Players[2].Hand))
		}
		if len(s.Players[0].Hand) != 6 || s.CurrentPlayerIndex != 1 {
			t.Errorf("player hand=%d idx=%d", len(s.Players[0].Hand), s.CurrentPlayerIndex)
		}
		assertConserved(t, s)
	})
	t.Run("general market skips spectators", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), three()...)
		s.Players[2].IsSpectator = true
		mustPlay(t, s, "a", "CIRCLE-14")
		if len(s.Players[2].Hand) != 2 {
			t.Errorf("spectator drew from market")
		}
	})
	t.Run("whot", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), three()...)
		mustPlay(t, s, "a", "WHOT-1")
		if s.AwaitingShapeSelection != "a" || s.CurrentPlayerIndex != 0 || s.CurrentNumber != NumberWhot {
			t.Errorf("awaiting=%q idx=%d num=%d", s.AwaitingShapeSelection, s.CurrentPlayerIndex, s.CurrentNumber)
		}
		if !strings.HasPrefix(s.Explanation, "WHOT") {
			t.Errorf("explanation = %q", s.Explanation)
		}
	})
}

func mustPlay(t *testing.T, s *GameState, pid, cid string) {
	t.Helper()
	if _, err := Play(s, pid, cid, testRNG(1)); err != nil {
		t.Fatalf("Play(%s, %s): %v", pid, cid, err)
	}
	assertConserved(t, s)
}

// TestWhotGating covers the shape-selection lock and its rejections.
func TestWhotGating(t *testing.T) {
	s := fixture(card(ShapeCircle, 7),
		[]Card{whot(1), card(ShapeCircle, 3)},
		[]Card{card(ShapeStar, 3), card(ShapeStar, 4)})
	mustPlay(t, s, "a", "WHOT-1")

	if _, err := Play(s, "a", "CIRCLE-3", testRNG(1)); err != ErrShapePending {
		t.Errorf("play while pending: err = %v", err)
	}
	if _, err := Draw(s, "a", testRNG(1)); err != ErrShapePending {
		t.Errorf("draw while pending: err = %v", err)
	}
	if err := ResolveShape(s, "b", ShapeStar); err != ErrNoShapePending {
		t.Errorf("wrong selector: err = %v", err)
	}

	before := clone(s)
	for _, bad := range []Shape{ShapeWhot, "HEXAGON", ""} {
		if err := ResolveShape(s, "a", bad); err != ErrInvalidShape {
			t.Errorf("shape %q: err = %v", bad, err)
		}
	}
	if !reflect.DeepEqual(before, s) {
		t.Fatalf("invalid shape mutated state")
	}

	if err := ResolveShape(s, "a", ShapeStar); err != nil {
		t.Fatalf("ResolveShape: %v", err)
	}
	if s.CurrentShape != ShapeStar || s.CurrentNumber != NumberWhot || s.AwaitingShapeSelection != "" || s.CurrentPlayerIndex != 1 {
		t.Errorf("after resolve: shape=%s num=%d awaiting=%q idx=%d", s.CurrentShape, s.CurrentNumber, s.AwaitingShapeSelection, s.CurrentPlayerIndex)
	}
	if err := ResolveShape(s, "a", ShapeCircle); err != ErrNoShapePending {
		t.Errorf("second resolve: err = %v", err)
	}
	if !IsValidMove(card(ShapeStar, 3), s) {
		t.Errorf("declared shape not playable")
	}
}

func TestPlayLastCardWins(t *testing.T) {
	s := fixture(card(ShapeCircle, 7),
		[]Card{card(ShapeCircle, 3)},
		[]Card{card(ShapeStar, 3), card(ShapeStar, 10)})
	mustPlay(t, s, "a", "CIRCLE-3")
	if s.Status != StatusFinished || s.WinnerID != "a" {
		t.Fatalf("status=%s winner=%q", s.Status, s.WinnerID)
	}
	if s.Players[0].Score != 0 || s.Players[1].Score != 13 {
		t.Errorf("scores = %d/%d, want 0/13", s.Players[0].Score, s.Players[1].Score)
	}
	if _, err := Draw(s, "b", testRNG(1)); err != ErrNotPlaying {
		t.Errorf("draw after finish: err = %v", err)
	}
}

func TestDrawReshuffle(t *testing.T) {
	s := fixture(card(ShapeCircle, 7), []Card{card(ShapeStar, 3)}, []Card{card(ShapeStar, 4)})
	// Move the whole draw pile under the top discard.
	top := s.DiscardPile[0]
	s.DiscardPile = append(append([]Card(nil), s.DrawPile...), top)
	s.DrawPile = nil

	n, err := Draw(s, "a", testRNG(3))
	if err != nil || n != 1 {
		t.Fatalf("Draw = %d, %v", n, err)
	}
	if len(s.DiscardPile) != 1 || s.DiscardPile[0] != top {
		t.Errorf("top discard not preserved: %v", s.DiscardPile)
	}
	assertConserved(t, s)
}

func TestDrawExhausted(t *testing.T) {
	s := fixture(card(ShapeCircle, 7), []Card{card(ShapeStar, 3)}, []Card{card(ShapeStar, 4)})
	s.Players[1].Hand = append(s.Players[1].Hand, s.DrawPile...)
	s.DrawPile = nil

	n, err := Draw(s, "a", testRNG(3))
	if err != nil || n != 0 {
		t.Fatalf("Draw = %d, %v; want 0, nil", n, err)
	}
	if s.CurrentPlayerIndex != 1 {
		t.Errorf("turn did not pass on empty draw")
	}
	assertConserved(t, s)
}

func TestApplyTimeoutPenalty(t *testing.T) {
	s := fixture(card(ShapeCircle, 2), []Card{card(ShapeStar, 3)}, []Card{card(ShapeStar, 4)})
	s.PendingPicks = 4
	shape, number := s.CurrentShape, s.CurrentNumber
	discard := len(s.DiscardPile)

	out := ApplyTimeout(s, testRNG(1))
	if out.PlayerID != "a" || out.Drawn != TimeoutPenalty || out.ForcedShape != "" {
		t.Errorf("outcome = %+v", out)
	}
	if len(s.Players[0].Hand) != 3 || s.PendingPicks != 0 || s.CurrentPlayerIndex != 1 {
		t.Errorf("hand=%d picks=%d idx=%d", len(s.Players[0].Hand), s.PendingPicks, s.CurrentPlayerIndex)
	}
	if s.CurrentShape != shape || s.CurrentNumber != number || len(s.DiscardPile) != discard {
		t.Errorf("timeout touched the discard state")
	}
	if last := s.Logs[len(s.Logs)-1]; last != "Player a timed out and drew 2 penalty cards!" {
		t.Errorf("log = %q", last)
	}
	assertConserved(t, s)
}

func TestApplyTimeoutOnEmptyDeck(t *testing.T) {
	s := fixture(card(ShapeCircle, 7), []Card{card(ShapeStar, 3)}, []Card{card(ShapeStar, 4)})
	s.Players[1].Hand = append(s.Players[1].Hand, s.DrawPile...)
	s.DrawPile = nil

	out := ApplyTimeout(s, testRNG(1))
	if out.Drawn != 0 {
		t.Errorf("Drawn = %d, want 0", out.Drawn)
	}
	if last := s.Logs[len(s.Logs)-1]; last != "Player a timed out and drew 0 penalty cards!" {
		t.Errorf("log = %q", last)
	}
	assertConserved(t, s)
}

func TestTimeoutMessage(t *testing.T) {
	tests := []struct {
		drawn int
		want  string
	}{
		{2, "Ada timed out and drew 2 penalty cards!"},
		{1, "Ada timed out and drew 1 penalty card!"},
		{0, "Ada timed out and drew 0 penalty cards!"},
	}
	for _, tt := range tests {
		if got := TimeoutMessage("Ada", tt.drawn); got != tt.want {
			t.Errorf("TimeoutMessage(%d) = %q, want %q", tt.drawn, got, tt.want)
		}
	}
}

func TestApplyTimeoutResolvesShape(t *testing.T) {
	s := fixture(card(ShapeCircle, 7), []Card{whot(1), card(ShapeStar, 3)}, []Card{card(ShapeStar, 4)})
	mustPlay(t, s, "a", "WHOT-1")
	out := ApplyTimeout(s, testRNG(9))
	if out.ForcedShape == "" || !out.ForcedShape.IsOrdinary() {
		t.Fatalf("forced shape = %q", out.ForcedShape)
	}
	if s.AwaitingShapeSelection != "" || s.CurrentShape != out.ForcedShape || s.CurrentPlayerIndex != 1 {
		t.Errorf("awaiting=%q shape=%s idx=%d", s.AwaitingShapeSelection, s.CurrentShape, s.CurrentPlayerIndex)
	}
	if len(s.Players[0].Hand) != 1 {
		t.Errorf("shape timeout drew cards")
	}
}

func TestDeclareLastCard(t *testing.T) {
	s := fixture(card(ShapeCircle, 7), []Card{card(ShapeStar, 3)}, []Card{card(ShapeStar, 4), card(ShapeStar, 5)})
	if err := DeclareLastCard(s, "b"); err != ErrNotLastCard {
		t.Errorf("two cards: err = %v", err)
	}
	if err := DeclareLastCard(s, "a"); err != nil {
		t.Fatalf("DeclareLastCard: %v", err)
	}
	if err := DeclareLastCard(s, "a"); err != nil {
		t.Fatalf("repeat DeclareLastCard: %v", err)
	}
	if len(s.LastCardDeclared) != 1 {
		t.Errorf("declared = %v", s.LastCardDeclared)
	}
	if _, err := Draw(s, "a", testRNG(1)); err != nil {
		t.Fatal(err)
	}
	if s.HasDeclaredLastCard("a") {
		t.Errorf("declaration survived a draw")
	}
}

func TestRemovePlayer(t *testing.T) {
	hands := func() [][]Card {
		return [][]Card{
			{card(ShapeStar, 3)},
			{card(ShapeStar, 4)},
			{card(ShapeStar, 5)},
			{card(ShapeStar, 7)},
		}
	}

	t.Run("before current", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), hands()...)
		s.CurrentPlayerIndex = 2
		RemovePlayer(s, "a", testRNG(1))
		if s.Players[s.CurrentPlayerIndex].ID != "c" {
			t.Errorf("current = %s, want c", s.Players[s.CurrentPlayerIndex].ID)
		}
		assertConserved(t, s)
	})
	t.Run("current forward", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), hands()...)
		s.CurrentPlayerIndex = 3
		RemovePlayer(s, "d", testRNG(1))
		if s.Players[s.CurrentPlayerIndex].ID != "a" {
			t.Errorf("current = %s, want a", s.Players[s.CurrentPlayerIndex].ID)
		}
	})
	t.Run("current reverse", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), hands()...)
		s.CurrentPlayerIndex = 0
		s.TurnDirection = -1
		RemovePlayer(s, "a", testRNG(1))
		if s.Players[s.CurrentPlayerIndex].ID != "d" {
			t.Errorf("current = %s, want d", s.Players[s.CurrentPlayerIndex].ID)
		}
	})
	t.Run("pending selector", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), append(hands()[:1], []Card{whot(1), card(ShapeSquare, 3)}, hands()[2])...)
		s.CurrentPlayerIndex = 1
		mustPlay(t, s, "b", "WHOT-1")
		RemovePlayer(s, "b", testRNG(1))
		if s.AwaitingShapeSelection != "" || !s.CurrentShape.IsOrdinary() {
			t.Errorf("awaiting=%q shape=%s", s.AwaitingShapeSelection, s.CurrentShape)
		}
		if s.Players[s.CurrentPlayerIndex].ID != "c" {
			t.Errorf("current = %s, want c", s.Players[s.CurrentPlayerIndex].ID)
		}
		assertConserved(t, s)
	})
	t.Run("last player standing", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), hands()[:2]...)
		RemovePlayer(s, "a", testRNG(1))
		if s.Status != StatusFinished || s.WinnerID != "b" {
			t.Errorf("status=%s winner=%q", s.Status, s.WinnerID)
		}
		assertConserved(t, s)
	})
	t.Run("unknown", func(t *testing.T) {
		s := fixture(card(ShapeCircle, 7), hands()...)
		if RemovePlayer(s, "zz", testRNG(1)) {
			t.Errorf("removed an unknown player")
		}
	})
}

func TestMarkSpectator(t *testing.T) {
	s := fixture(card(ShapeCircle, 7), []Card{card(ShapeStar, 3)}, []Card{card(ShapeStar, 4)}, []Card{card(ShapeStar, 5)})
	if !MarkSpectator(s, "a", testRNG(1)) {
		t.Fatal("MarkSpectator returned false")
	}
	if s.CurrentPlayerIndex != 1 {
		t.Errorf("turn stayed on spectator")
	}
	if _, err := Play(s, "a", "STAR-3", testRNG(1)); err != ErrSpectator {
		t.Errorf("spectator play: err = %v", err)
	}
	MarkSpectator(s, "b", testRNG(1))
	if s.Status != StatusFinished || s.WinnerID != "c" {
		t.Errorf("status=%s winner=%q", s.Status, s.WinnerID)
	}
}
