// internal/game/room.go
package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/cache"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/sirupsen/logrus"
)

// RoomStatus is the lifecycle of a room.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// Defaults used when Options leaves a duration unset.
const (
	DefaultTurnDuration    = 10 * time.Second
	DefaultReconnectWindow = 60 * time.Second
	DefaultIdleTimeout     = 10 * time.Minute

	ChatHistoryLimit = 50
	ChatMaxRunes     = 500
)

// ActionLog receives every state-changing action of a room.
type ActionLog interface {
	Publish(ctx context.Context, rec cache.ActionRecord) error
}

// Options configures a new Room.
type Options struct {
	Code            string
	Config          models.RoomConfig
	TurnDuration    time.Duration
	ReconnectWindow time.Duration
	IdleTimeout     time.Duration
	Scheduler       Scheduler
	Rand            engine.RandSource
	ActionLog       ActionLog
	Logger          *logrus.Entry
	TournamentID    string
	MatchID         string
	// Seats, when set, limits the roster to these player ids.
	Seats []string
}

// Room is one table: its roster, its match and every timer acting on them.
// All exported methods lock Mu; timer callbacks do the same, so every
// mutation is serialized per room.
type Room struct {
	ID           string
	Code         string
	HostID       string
	Config       models.RoomConfig
	Status       RoomStatus
	Players      []*models.Player // join order
	Match        *engine.GameState
	ChatHistory  []models.ChatMessage
	TurnTimeLeft int
	TournamentID string
	MatchID      string
	CreatedAt    time.Time
	StartedAt    time.Time

	Mu sync.Mutex

	// Communication callbacks. BroadcastFn reaches every connection in the
	// room's channel; SendFn reaches one connection.
	BroadcastFn func(ev Event)
	SendFn      func(connID string, ev Event)
	// OnFinished and OnEmpty run after Mu is released.
	OnFinished func(res models.MatchResult)
	OnEmpty    func(code string)

	turnDuration    time.Duration
	reconnectWindow time.Duration
	idleTimeout     time.Duration
	sched           Scheduler
	rng             engine.RandSource
	actions         ActionLog
	log             *logrus.Entry
	seats           map[string]bool

	hostPaused   bool
	disconnected map[string]*reconnectCountdown

	clockGen   int
	clockTimer Timer
	idleGen    int
	idleTimer  Timer

	closed      bool
	finished    bool
	actionIndex int
	deferred    []func()
}

// NewRoom creates an empty waiting room.
func NewRoom(opts Options) *Room {
	if opts.TurnDuration <= 0 {
		opts.TurnDuration = DefaultTurnDuration
	}
	if opts.ReconnectWindow <= 0 {
		opts.ReconnectWindow = DefaultReconnectWindow
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Room{
		ID:              uuid.NewString(),
		Code:            opts.Code,
		Config:          opts.Config,
		Status:          StatusWaiting,
		TournamentID:    opts.TournamentID,
		MatchID:         opts.MatchID,
		CreatedAt:       time.Now(),
		turnDuration:    opts.TurnDuration,
		reconnectWindow: opts.ReconnectWindow,
		idleTimeout:     opts.IdleTimeout,
		sched:           opts.Scheduler,
		rng:             opts.Rand,
		actions:         opts.ActionLog,
		disconnected:    make(map[string]*reconnectCountdown),
	}
	if len(opts.Seats) > 0 {
		r.seats = make(map[string]bool, len(opts.Seats))
		for _, id := range opts.Seats {
			r.seats[id] = true
		}
	}
	r.log = opts.Logger.WithFields(logrus.Fields{"room": opts.Code})
	r.TurnTimeLeft = r.turnSeconds()
	return r
}

// ---------------------------------------------------------------------------
// Locking
// ---------------------------------------------------------------------------

func (r *Room) lock() { r.Mu.Lock() }

// unlock releases Mu and then runs callbacks queued with after.
func (r *Room) unlock() {
	hooks := r.deferred
	r.deferred = nil
	r.Mu.Unlock()
	for _, h := range hooks {
		h()
	}
}

// after queues f to run once the lock is released.
func (r *Room) after(f func()) {
	r.deferred = append(r.deferred, f)
}

// ---------------------------------------------------------------------------
// Roster
// ---------------------------------------------------------------------------

// Host seats the creator and replies with room-created.
func (r *Room) Host(connID string, pd models.PlayerData) error {
	return r.join(connID, pd, EventRoomCreated)
}

// Join adds a player, or restores one already seated in the match.
func (r *Room) Join(connID string, pd models.PlayerData) error {
	return r.join(connID, pd, EventRoomJoined)
}

func (r *Room) join(connID string, pd models.PlayerData, reply EventType) error {
	r.lock()
	defer r.unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if !pd.Valid() {
		return ErrInvalidPlayer
	}
	existing := r.player(pd.ID)
	inMatch := r.Match != nil && r.Match.PlayerIndex(pd.ID) != -1
	if r.Status != StatusWaiting && !inMatch {
		return ErrRoomNotJoinable
	}
	if r.seats != nil && !r.seats[pd.ID] {
		return ErrRoomNotJoinable
	}
	if existing == nil && len(r.Players) >= r.Config.MaxPlayers {
		return ErrRoomFull
	}

	if existing != nil {
		// Same id from a new connection: the old entry is stale.
		existing.Name = pd.Name
		existing.Avatar = pd.Avatar
		r.restore(existing, connID)
		r.log.WithField("player", pd.ID).Info("Player rejoined")
	} else {
		now := time.Now()
		r.Players = append(r.Players, &models.Player{
			ID:          pd.ID,
			Name:        pd.Name,
			Avatar:      pd.Avatar,
			ConnID:      connID,
			IsConnected: true,
			JoinedAt:    now,
			LastSeen:    now,
		})
		if r.HostID == "" {
			r.HostID = pd.ID
		}
		r.cancelIdle()
		r.log.WithField("player", pd.ID).Info("Player joined")
	}
	r.logAction(pd.ID, "player_join", map[string]interface{}{"name": pd.Name, "rejoin": existing != nil})

	p := r.player(pd.ID)
	view := r.roomView()
	r.sendTo(p, reply, view)
	if reply == EventRoomJoined {
		r.broadcast(EventPlayerJoined, view)
	}
	if r.Match != nil && inMatch {
		r.sendGameStarted(p)
		r.broadcastState()
	}
	return nil
}

// Reconnect restores a seated player on a new connection.
func (r *Room) Reconnect(connID string, pd models.PlayerData) error {
	r.lock()
	defer r.unlock()

	if r.closed {
		return ErrRoomClosed
	}
	p := r.player(pd.ID)
	if p == nil {
		return ErrNotInRoom
	}
	r.restore(p, connID)
	r.logAction(p.ID, "player_reconnect", nil)
	r.log.WithField("player", p.ID).Info("Player reconnected")

	r.sendTo(p, EventRoomJoined, r.roomView())
	r.broadcast(EventRoomUpdated, r.roomView())
	if r.Match != nil {
		r.sendGameStarted(p)
		r.broadcastState()
	}
	return nil
}

// restore marks p connected on connID, cancelling any countdown and the
// idle cleanup. Assumes lock is held by caller.
func (r *Room) restore(p *models.Player, connID string) {
	was := r.paused()
	p.ConnID = connID
	p.IsConnected = true
	p.LastSeen = time.Now()
	if c, ok := r.disconnected[p.ID]; ok {
		c.stop()
		delete(r.disconnected, p.ID)
	}
	r.cancelIdle()
	r.settlePause(was)
}

// SetReady toggles a player's ready flag while the room is waiting.
func (r *Room) SetReady(playerID string, ready bool) error {
	r.lock()
	defer r.unlock()

	if r.closed {
		return ErrRoomClosed
	}
	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	if r.Status != StatusWaiting {
		return ErrRoomNotJoinable
	}
	p.IsReady = ready
	r.logAction(playerID, "player_ready", map[string]interface{}{"ready": ready})
	r.broadcast(EventPlayerReadyUpdate, r.roomView())
	return nil
}

// Start deals a match. Only the host may start, with at least two players
// who are all ready.
func (r *Room) Start(playerID string) error {
	r.lock()
	defer r.unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if playerID != r.HostID {
		return ErrNotHost
	}
	if r.Status != StatusWaiting || len(r.Players) < engine.MinPlayers {
		return ErrCannotStart
	}
	seats := make([]engine.PlayerState, 0, len(r.Players))
	for _, p := range r.Players {
		if !p.IsReady {
			return ErrCannotStart
		}
		seats = append(seats, engine.PlayerState{ID: p.ID, Name: p.Name, Avatar: p.Avatar})
	}
	match, err := engine.NewGame(seats, r.Config.GameMode, r.rng)
	if err != nil {
		r.log.WithError(err).Warn("Cannot deal match")
		return ErrCannotStart
	}

	r.Match = match
	r.Status = StatusPlaying
	r.StartedAt = time.Now()
	r.ChatHistory = nil
	r.logAction(playerID, "game_start", map[string]interface{}{"players": len(seats), "mode": string(match.GameMode)})
	r.log.WithField("players", len(seats)).Info("Game started")

	r.restartClock()
	for _, p := range r.Players {
		r.sendGameStarted(p)
	}
	return nil
}

// Leave removes a player voluntarily.
func (r *Room) Leave(playerID string) error {
	r.lock()
	defer r.unlock()

	if r.closed {
		return ErrRoomClosed
	}
	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	r.removePlayer(p, "player_leave")
	return nil
}

// removePlayer drops p from roster and match. Assumes lock is held by caller.
func (r *Room) removePlayer(p *models.Player, action string) {
	was := r.paused()
	for i, rp := range r.Players {
		if rp == p {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	if c, ok := r.disconnected[p.ID]; ok {
		c.stop()
		delete(r.disconnected, p.ID)
	}
	if r.Status == StatusPlaying && r.Match != nil {
		engine.RemovePlayer(r.Match, p.ID, r.rng)
	}
	r.logAction(p.ID, action, nil)
	r.log.WithFields(logrus.Fields{"player": p.ID, "reason": action}).Info("Player removed")

	if r.HostID == p.ID {
		r.reassignHost(false)
	}
	r.broadcast(EventPlayerLeft, PlayerLeftPayload{PlayerID: p.ID, Room: r.roomView()})

	if len(r.Players) == 0 {
		r.stopTimers()
		if r.OnEmpty != nil {
			code, onEmpty := r.Code, r.OnEmpty
			r.after(func() { onEmpty(code) })
		}
		return
	}
	if r.Status == StatusPlaying {
		if r.Match.Status == engine.StatusFinished {
			r.finishMatch()
		} else {
			r.settlePause(was)
		}
		r.broadcastState()
	}
	if r.connectedCount() == 0 {
		r.scheduleIdle()
	}
}

// reassignHost moves the host role to the earliest-joined remaining player,
// or to the earliest connected one. Assumes lock is held by caller.
func (r *Room) reassignHost(connectedOnly bool) {
	for _, p := range r.Players {
		if p.ID == r.HostID || (connectedOnly && !p.IsConnected) {
			continue
		}
		r.HostID = p.ID
		r.logAction(p.ID, "host_changed", nil)
		r.broadcast(EventHostChanged, r.roomView())
		return
	}
	if !connectedOnly {
		r.HostID = ""
	}
}

// ---------------------------------------------------------------------------
// Finish & teardown
// ---------------------------------------------------------------------------

// finishMatch records the end of play once. Assumes lock is held by caller.
func (r *Room) finishMatch() {
	if r.finished || r.Match == nil {
		return
	}
	r.finished = true
	r.Status = StatusFinished
	r.stopClock()
	for id, c := range r.disconnected {
		c.stop()
		delete(r.disconnected, id)
	}

	res := models.MatchResult{
		RoomID:       r.ID,
		RoomCode:     r.Code,
		TournamentID: r.TournamentID,
		MatchID:      r.MatchID,
		GameMode:     r.Match.GameMode,
		WinnerID:     r.Match.WinnerID,
		StartedAt:    r.StartedAt,
		FinishedAt:   time.Now(),
	}
	for _, mp := range r.Match.Players {
		res.Players = append(res.Players, models.ResultPlayer{
			ID:        mp.ID,
			Name:      mp.Name,
			Score:     mp.Score,
			CardsLeft: len(mp.Hand),
			Spectator: mp.IsSpectator,
		})
		if p := r.player(mp.ID); p != nil {
			p.Score = mp.Score
		}
	}
	r.logAction("", "game_end", map[string]interface{}{"winnerId": res.WinnerID})
	r.log.WithField("winner", res.WinnerID).Info("Game finished")

	if r.OnFinished != nil {
		onFinished := r.OnFinished
		r.after(func() { onFinished(res) })
	}
}

// Close stops every timer. Commands on a closed room fail with
// ErrRoomClosed and pending timer callbacks become no-ops.
func (r *Room) Close() {
	r.lock()
	defer r.unlock()
	r.closed = true
	r.stopTimers()
}

// stopTimers cancels the clock, countdowns and idle cleanup. Assumes lock
// is held by caller.
func (r *Room) stopTimers() {
	r.stopClock()
	r.cancelIdle()
	for id, c := range r.disconnected {
		c.stop()
		delete(r.disconnected, id)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (r *Room) player(id string) *models.Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// paused reports whether play is suspended: by the host, by an outstanding
// disconnection, or because nobody is connected.
func (r *Room) paused() bool {
	if r.Status != StatusPlaying {
		return false
	}
	return r.hostPaused || len(r.disconnected) > 0 || r.connectedCount() == 0
}

// settlePause starts or stops the turn clock when the paused state changed
// since was was sampled. Assumes lock is held by caller.
func (r *Room) settlePause(was bool) {
	now := r.paused()
	switch {
	case was && !now:
		r.startClock()
		r.broadcast(EventGameResumed, nil)
		r.log.Info("Game resumed")
	case !was && now:
		r.stopClock()
	}
}

func (r *Room) turnSeconds() int {
	return int(r.turnDuration / time.Second)
}

func (r *Room) broadcast(t EventType, payload any) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(Event{Type: t, Payload: payload})
	}
}

func (r *Room) sendTo(p *models.Player, t EventType, payload any) {
	if r.SendFn == nil || p == nil || !p.IsConnected || p.ConnID == "" {
		return
	}
	r.SendFn(p.ConnID, Event{Type: t, Payload: payload})
}

// logAction publishes an action record asynchronously. A room without an
// action log only bumps the index. Assumes lock is held by caller.
func (r *Room) logAction(actorID, actionType string, payload map[string]interface{}) {
	r.actionIndex++
	if r.actions == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	rec := cache.ActionRecord{
		RoomID:      r.ID,
		RoomCode:    r.Code,
		ActionIndex: r.actionIndex,
		ActorID:     actorID,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	actions, log := r.actions, r.log
	go func(rec cache.ActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := actions.Publish(ctx, rec); err != nil {
			log.WithError(err).WithField("action", rec.ActionType).Warn("Failed publishing action")
		}
	}(rec)
}
