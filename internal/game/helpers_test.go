package game

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeScheduler runs callbacks on the test goroutine when virtual time is
// advanced past their deadline.
type fakeScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*fakeTask
}

type fakeTask struct {
	s    *fakeScheduler
	due  time.Duration
	seq  int
	f    func()
	done bool
}

func (t *fakeTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTask{s: s, due: s.now + d, seq: s.seq, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance fires, in deadline order, every task due within d.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		s.mu.Lock()
		var next *fakeTask
		for _, t := range s.tasks {
			if t.done || t.due > target {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			live := s.tasks[:0]
			for _, t := range s.tasks {
				if !t.done {
					live = append(live, t)
				}
			}
			s.tasks = live
			s.mu.Unlock()
			return
		}
		s.now = next.due
		next.done = true
		s.mu.Unlock()
		next.f()
	}
}

// Tick advances n whole seconds one at a time.
func (s *fakeScheduler) Tick(n int) {
	for i := 0; i < n; i++ {
		s.Advance(time.Second)
	}
}

// mockBroadcaster captures room events for testing assertions.
type mockBroadcaster struct {
	mu         sync.Mutex
	allEvents  []Event
	connEvents map[string][]Event
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{connEvents: make(map[string][]Event)}
}

func (mb *mockBroadcaster) broadcastFn(ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) sendFn(connID string, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.connEvents[connID] = append(mb.connEvents[connID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.connEvents = make(map[string][]Event)
}

func (mb *mockBroadcaster) total() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := len(mb.allEvents)
	for _, evs := range mb.connEvents {
		n += len(evs)
	}
	return n
}

func (mb *mockBroadcaster) findEventByType(t EventType) *Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.allEvents) - 1; i >= 0; i-- {
		if mb.allEvents[i].Type == t {
			return &mb.allEvents[i]
		}
	}
	return nil
}

func (mb *mockBroadcaster) countByType(t EventType) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, ev := range mb.allEvents {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (mb *mockBroadcaster) findConnEventByType(connID string, t EventType) *Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	evs := mb.connEvents[connID]
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == t {
			return &evs[i]
		}
	}
	return nil
}

func pid(i int) string  { return fmt.Sprintf("p%d", i) }
func cid(i int) string  { return fmt.Sprintf("c%d", i) }
func name(i int) string { return fmt.Sprintf("Player %d", i) }

// setupTestRoom creates a waiting room with n ready players p1..pn on
// connections c1..cn. p1 is host.
func setupTestRoom(t *testing.T, n int, cfg models.RoomConfig) (*Room, *mockBroadcaster, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	mb := newMockBroadcaster()
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = 4
	}
	r := NewRoom(Options{
		Code:      "NAIJA-1234",
		Config:    cfg.Normalize(4),
		Scheduler: sched,
		Rand:      rand.New(rand.NewPCG(42, 7)),
	})
	r.BroadcastFn = mb.broadcastFn
	r.SendFn = mb.sendFn

	for i := 1; i <= n; i++ {
		pd := models.PlayerData{ID: pid(i), Name: name(i)}
		if i == 1 {
			require.NoError(t, r.Host(cid(i), pd))
		} else {
			require.NoError(t, r.Join(cid(i), pd))
		}
		require.NoError(t, r.SetReady(pid(i), true))
	}
	return r, mb, sched
}

// startTestGame deals a match and rigs it to a known position: p1 to move
// on CIRCLE-7 with CIRCLE-3 and STAR-4 in hand, everyone else holding two
// off-suit cards.
func startTestGame(t *testing.T, n int) (*Room, *mockBroadcaster, *fakeScheduler) {
	t.Helper()
	r, mb, sched := setupTestRoom(t, n, models.RoomConfig{})
	require.NoError(t, r.Start(pid(1)))

	hands := [][]engine.Card{{card(engine.ShapeCircle, 3), card(engine.ShapeStar, 4)}}
	others := []engine.Shape{engine.ShapeSquare, engine.ShapeTriangle, engine.ShapeCross}
	for i := 1; i < n; i++ {
		sh := others[(i-1)%len(others)]
		hands = append(hands, []engine.Card{card(sh, 10+i), card(sh, 10)})
	}
	rig(t, r, card(engine.ShapeCircle, 7), hands...)
	mb.clear()
	return r, mb, sched
}

func card(sh engine.Shape, n int) engine.Card {
	return engine.Card{ID: fmt.Sprintf("%s-%d", sh, n), Shape: sh, Number: n}
}

// rig replaces hands and piles of a dealt match while keeping all 54
// cards accounted for.
func rig(t *testing.T, r *Room, top engine.Card, hands ...[]engine.Card) {
	t.Helper()
	r.Mu.Lock()
	defer r.Mu.Unlock()
	m := r.Match
	require.NotNil(t, m)
	require.Len(t, hands, len(m.Players))

	used := map[string]bool{top.ID: true}
	for i, h := range hands {
		m.Players[i].Hand = append([]engine.Card(nil), h...)
		for _, c := range h {
			require.False(t, used[c.ID], "card %s used twice", c.ID)
			used[c.ID] = true
		}
	}
	m.DrawPile = nil
	for _, c := range engine.NewDeck() {
		if !used[c.ID] {
			m.DrawPile = append(m.DrawPile, c)
		}
	}
	m.DiscardPile = []engine.Card{top}
	m.CurrentShape, m.CurrentNumber = top.Shape, top.Number
	m.CurrentPlayerIndex = 0
	m.PendingPicks = 0
	m.AwaitingShapeSelection = ""
	require.Equal(t, engine.DeckSize, m.CardCount())
}
