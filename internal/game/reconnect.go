package game

import (
	"time"

	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/sirupsen/logrus"
)

// reconnectCountdown tracks one disconnected player's grace window.
type reconnectCountdown struct {
	remaining int
	timer     Timer
}

func (c *reconnectCountdown) stop() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Disconnect handles a dropped connection. It is ignored when the player
// has since moved to another connection.
func (r *Room) Disconnect(playerID, connID string) {
	r.lock()
	defer r.unlock()

	if r.closed {
		return
	}
	p := r.player(playerID)
	if p == nil || p.ConnID != connID || !p.IsConnected {
		return
	}
	logger := r.log.WithFields(logrus.Fields{"player": p.ID, "conn": connID})

	if r.Status == StatusWaiting {
		logger.Info("Player disconnected from waiting room")
		r.removePlayer(p, "player_disconnect")
		return
	}

	was := r.paused()
	p.IsConnected = false
	p.LastSeen = time.Now()
	r.logAction(p.ID, "player_disconnect", nil)

	if r.Status == StatusPlaying && !p.IsSpectator {
		c := &reconnectCountdown{remaining: r.countdownSeconds()}
		r.disconnected[p.ID] = c
		c.timer = r.sched.AfterFunc(time.Second, func() { r.onCountdownTick(p.ID, c) })
		logger.WithField("countdown", c.remaining).Info("Player disconnected mid-game, waiting for reconnect")
		r.settlePause(was)
		r.broadcast(EventGamePaused, GamePausedPayload{
			Reason:             PauseReasonDisconnect,
			DisconnectedPlayer: p.ID,
			PlayerName:         p.Name,
			Countdown:          c.remaining,
		})
	} else {
		r.settlePause(was)
	}

	if r.HostID == p.ID {
		r.reassignHost(true)
	}
	r.broadcast(EventRoomUpdated, r.roomView())
	if r.Match != nil {
		r.broadcastState()
	}
	if r.connectedCount() == 0 {
		logger.Info("No players connected, scheduling room cleanup")
		r.scheduleIdle()
	}
}

func (r *Room) countdownSeconds() int {
	return int(r.reconnectWindow / time.Second)
}

func (r *Room) onCountdownTick(playerID string, c *reconnectCountdown) {
	r.lock()
	defer r.unlock()

	if r.closed || r.disconnected[playerID] != c {
		return
	}
	c.timer = nil
	if r.connectedCount() == 0 {
		// Nobody left to resume for; hold the window until someone returns
		// or the idle cleanup releases the room.
		c.timer = r.sched.AfterFunc(time.Second, func() { r.onCountdownTick(playerID, c) })
		return
	}
	c.remaining--
	if c.remaining <= 0 {
		r.expireCountdown(playerID)
		return
	}
	name := playerID
	if p := r.player(playerID); p != nil {
		name = p.Name
	}
	r.broadcast(EventReconnectionCountdown, CountdownPayload{PlayerID: playerID, PlayerName: name, Countdown: c.remaining})
	c.timer = r.sched.AfterFunc(time.Second, func() { r.onCountdownTick(playerID, c) })
}

// expireCountdown turns a player who never came back into a spectator.
// Assumes lock is held by caller.
func (r *Room) expireCountdown(playerID string) {
	was := r.paused()
	delete(r.disconnected, playerID)
	if p := r.player(playerID); p != nil {
		p.IsSpectator = true
	}
	if r.Match != nil {
		engine.MarkSpectator(r.Match, playerID, r.rng)
	}
	r.logAction("", "player_spectator", map[string]interface{}{"playerId": playerID})
	r.log.WithField("player", playerID).Info("Reconnect window expired, player is now a spectator")
	r.broadcast(EventPlayerBecameSpectator, SpectatorPayload{PlayerID: playerID})

	if r.Match != nil && r.Match.Status == engine.StatusFinished {
		r.finishMatch()
	} else {
		r.settlePause(was)
	}
	r.broadcast(EventRoomUpdated, r.roomView())
	r.broadcastState()
}

// ReplaceDisconnected lets the host drop a disconnected player instead of
// waiting out the countdown.
func (r *Room) ReplaceDisconnected(hostID, playerID string) error {
	r.lock()
	defer r.unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if hostID != r.HostID {
		return ErrNotHost
	}
	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	if p.IsConnected {
		return ErrPlayerConnected
	}
	r.removePlayer(p, "player_replaced")
	return nil
}

// SweepDisconnected removes players that have been offline longer than
// maxAge and returns their ids.
func (r *Room) SweepDisconnected(now time.Time, maxAge time.Duration) []string {
	r.lock()
	defer r.unlock()

	if r.closed {
		return nil
	}
	var stale []*models.Player
	for _, p := range r.Players {
		if !p.IsConnected && now.Sub(p.LastSeen) > maxAge {
			stale = append(stale, p)
		}
	}
	ids := make([]string, 0, len(stale))
	for _, p := range stale {
		if r.player(p.ID) == nil {
			continue
		}
		r.removePlayer(p, "player_swept")
		ids = append(ids, p.ID)
	}
	return ids
}

// ---------------------------------------------------------------------------
// Idle cleanup
// ---------------------------------------------------------------------------

// scheduleIdle arms the deletion timer for a room nobody is connected to.
// Assumes lock is held by caller.
func (r *Room) scheduleIdle() {
	if r.idleTimer != nil || r.closed {
		return
	}
	gen := r.idleGen
	r.idleTimer = r.sched.AfterFunc(r.idleTimeout, func() { r.onIdle(gen) })
}

// cancelIdle disarms the deletion timer. Assumes lock is held by caller.
func (r *Room) cancelIdle() {
	r.idleGen++
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
}

func (r *Room) onIdle(gen int) {
	r.lock()
	defer r.unlock()

	if r.closed || gen != r.idleGen {
		return
	}
	r.idleTimer = nil
	if r.connectedCount() > 0 {
		return
	}
	r.log.Info("Room idle, releasing")
	r.stopTimers()
	if r.OnEmpty != nil {
		code, onEmpty := r.Code, r.OnEmpty
		r.after(func() { onEmpty(code) })
	}
}
