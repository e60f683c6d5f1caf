// Package registry owns every live room, connection and tournament of the
// process. Its lock guards only the maps; room and tournament state have
// their own locks, and the registry never calls into a room while holding
// its own.
package registry

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/game"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/jason-s-yu/whot/internal/tournament"
	"github.com/sirupsen/logrus"
)

const (
	RoomPrefix       = "NAIJA"
	TournamentPrefix = "TOURN"

	DefaultSweepInterval     = 5 * time.Minute
	DefaultDisconnectTimeout = 5 * time.Minute

	codeAttempts = 100
)

var ErrNoRoomCode = errors.New("no free room code")

// Notifier delivers events to connections and manages channel membership.
// A channel is a room code or a tournament id.
type Notifier interface {
	Broadcast(channel string, ev game.Event)
	Send(connID string, ev game.Event)
	Subscribe(connID, channel string)
	Unsubscribe(connID, channel string)
}

// MatchArchive stores finished matches.
type MatchArchive interface {
	StoreMatchResult(ctx context.Context, res models.MatchResult) error
}

// Conn is the identity bound to one socket.
type Conn struct {
	ID           string
	Player       models.PlayerData
	RoomCode     string
	TournamentID string
}

// Stats is the summary served by the health endpoint.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
	Tournaments int `json:"tournaments"`
}

// Options configures a Registry. Zero durations fall back to defaults.
type Options struct {
	DefaultMaxPlayers int
	TurnDuration      time.Duration
	ReconnectWindow   time.Duration
	IdleTimeout       time.Duration
	DisconnectTimeout time.Duration
	SweepInterval     time.Duration

	Notifier  Notifier
	ActionLog game.ActionLog
	Archive   MatchArchive
	Scheduler game.Scheduler
	// NewRand seeds each room; nil lets rooms seed themselves.
	NewRand func() engine.RandSource
	Logger  *logrus.Entry
}

type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*game.Room
	conns       map[string]*Conn
	tournaments map[string]*tournament.Tournament

	opts Options
	log  *logrus.Entry
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.DefaultMaxPlayers <= 0 {
		opts.DefaultMaxPlayers = 4
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.DisconnectTimeout <= 0 {
		opts.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		rooms:       make(map[string]*game.Room),
		conns:       make(map[string]*Conn),
		tournaments: make(map[string]*tournament.Tournament),
		opts:        opts,
		log:         opts.Logger.WithField("component", "registry"),
	}
}

// ---------------------------------------------------------------------------
// Rooms
// ---------------------------------------------------------------------------

func (reg *Registry) Room(code string) (*game.Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[code]
	return r, ok
}

func (reg *Registry) UpsertRoom(r *game.Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.rooms[r.Code] = r
}

// DeleteRoom unregisters and closes the room, detaching every connection
// still bound to it.
func (reg *Registry) DeleteRoom(code string) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	delete(reg.rooms, code)
	var detached []string
	for _, c := range reg.conns {
		if c.RoomCode == code {
			c.RoomCode = ""
			detached = append(detached, c.ID)
		}
	}
	reg.mu.Unlock()

	if !ok {
		return
	}
	r.Close()
	if n := reg.opts.Notifier; n != nil {
		for _, id := range detached {
			n.Unsubscribe(id, code)
		}
	}
	reg.log.WithField("room", code).Info("Room deleted")
}

// RoomCodes lists live room codes.
func (reg *Registry) RoomCodes() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		out = append(out, code)
	}
	return out
}

// CreateRoom registers a new waiting room under a fresh code with prefix
// and wires its callbacks to the notifier and the registry.
func (reg *Registry) CreateRoom(cfg models.RoomConfig, prefix string, link *tournament.Match, tournamentID string) (*game.Room, error) {
	opts := game.Options{
		Config:          cfg.Normalize(reg.opts.DefaultMaxPlayers),
		TurnDuration:    reg.opts.TurnDuration,
		ReconnectWindow: reg.opts.ReconnectWindow,
		IdleTimeout:     reg.opts.IdleTimeout,
		Scheduler:       reg.opts.Scheduler,
		ActionLog:       reg.opts.ActionLog,
		Logger:          reg.opts.Logger,
	}
	if reg.opts.NewRand != nil {
		opts.Rand = reg.opts.NewRand()
	}
	if link != nil {
		opts.TournamentID = tournamentID
		opts.MatchID = link.ID
		for _, p := range link.Players {
			if p != nil {
				opts.Seats = append(opts.Seats, p.ID)
			}
		}
	}

	reg.mu.Lock()
	code, err := reg.freeCode(prefix)
	if err != nil {
		reg.mu.Unlock()
		return nil, err
	}
	opts.Code = code
	r := game.NewRoom(opts)
	reg.wire(r)
	reg.rooms[code] = r
	reg.mu.Unlock()

	reg.log.WithFields(logrus.Fields{"room": code, "tournament": tournamentID}).Info("Room created")
	return r, nil
}

// freeCode draws PREFIX-dddd codes until one is unused. Assumes lock is
// held by caller.
func (reg *Registry) freeCode(prefix string) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := FormatCode(prefix, 1000+rand.IntN(9000))
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrNoRoomCode
}

func (reg *Registry) wire(r *game.Room) {
	code := r.Code
	if n := reg.opts.Notifier; n != nil {
		r.BroadcastFn = func(ev game.Event) { n.Broadcast(code, ev) }
		r.SendFn = n.Send
	}
	r.OnFinished = reg.onRoomFinished
	r.OnEmpty = reg.onRoomEmpty
}

// ---------------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------------

func (reg *Registry) Conn(connID string) (Conn, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	c, ok := reg.conns[connID]
	if !ok {
		return Conn{}, false
	}
	return *c, true
}

func (reg *Registry) UpsertConn(c Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	cc := c
	reg.conns[c.ID] = &cc
}

// UpdateConn applies f to the stored connection, if any.
func (reg *Registry) UpdateConn(connID string, f func(c *Conn)) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	c, ok := reg.conns[connID]
	if ok {
		f(c)
	}
	return ok
}

func (reg *Registry) DeleteConn(connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.conns, connID)
}

// TakeSeat unbinds every other connection seated as playerID in room code
// and returns their ids. The seat then belongs to keep alone.
func (reg *Registry) TakeSeat(playerID, code, keep string) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var stale []string
	for id, c := range reg.conns {
		if id != keep && c.RoomCode == code && c.Player.ID == playerID {
			c.RoomCode = ""
			stale = append(stale, id)
		}
	}
	return stale
}

// ConnForPlayer finds the live connection a player is identified on.
func (reg *Registry) ConnForPlayer(playerID string) (Conn, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, c := range reg.conns {
		if c.Player.ID == playerID {
			return *c, true
		}
	}
	return Conn{}, false
}

// ---------------------------------------------------------------------------
// Tournaments
// ---------------------------------------------------------------------------

func (reg *Registry) Tournament(id string) (*tournament.Tournament, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	t, ok := reg.tournaments[id]
	return t, ok
}

func (reg *Registry) UpsertTournament(t *tournament.Tournament) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.tournaments[t.ID()] = t
}

func (reg *Registry) DeleteTournament(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.tournaments, id)
	for _, c := range reg.conns {
		if c.TournamentID == id {
			c.TournamentID = ""
		}
	}
}

// Stats counts live objects.
func (reg *Registry) Stats() Stats {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return Stats{
		Rooms:       len(reg.rooms),
		Connections: len(reg.conns),
		Tournaments: len(reg.tournaments),
	}
}
