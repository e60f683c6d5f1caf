package game

import (
	"time"

	"github.com/jason-s-yu/whot/engine"
	"github.com/sirupsen/logrus"
)

// startClock schedules the next one-second tick if the room is in
// unpaused play. Assumes lock is held by caller.
func (r *Room) startClock() {
	r.stopClock()
	if r.closed || r.Status != StatusPlaying || r.paused() {
		return
	}
	gen := r.clockGen
	r.clockTimer = r.sched.AfterFunc(time.Second, func() { r.onClockTick(gen) })
}

// stopClock cancels the pending tick and invalidates any tick already in
// flight. Assumes lock is held by caller.
func (r *Room) stopClock() {
	r.clockGen++
	if r.clockTimer != nil {
		r.clockTimer.Stop()
		r.clockTimer = nil
	}
}

// restartClock gives the current player a full turn. Assumes lock is held
// by caller.
func (r *Room) restartClock() {
	r.TurnTimeLeft = r.turnSeconds()
	r.startClock()
}

func (r *Room) onClockTick(gen int) {
	r.lock()
	defer r.unlock()

	if r.closed || gen != r.clockGen || r.Status != StatusPlaying || r.paused() {
		return
	}
	r.clockTimer = nil

	if r.TurnTimeLeft > 0 {
		r.TurnTimeLeft--
	}
	if r.TurnTimeLeft <= 0 {
		r.handleTurnTimeout()
		if r.Match.Status == engine.StatusFinished {
			r.finishMatch()
			r.broadcastState()
			return
		}
		r.TurnTimeLeft = r.turnSeconds()
	}
	r.broadcastState()
	r.clockTimer = r.sched.AfterFunc(time.Second, func() { r.onClockTick(gen) })
}

// handleTurnTimeout applies the fallback for a player who let the clock
// run out. Assumes lock is held by caller.
func (r *Room) handleTurnTimeout() {
	out := engine.ApplyTimeout(r.Match, r.rng)
	if out.PlayerID == "" {
		return
	}
	logger := r.log.WithFields(logrus.Fields{"player": out.PlayerID})
	if out.ForcedShape != "" {
		logger.WithField("shape", out.ForcedShape).Info("Shape selection timed out")
		r.logAction("", "shape_timeout", map[string]interface{}{"playerId": out.PlayerID, "shape": string(out.ForcedShape)})
		return
	}
	logger.WithField("drawn", out.Drawn).Info("Turn timed out")
	r.logAction("", "turn_timeout", map[string]interface{}{"playerId": out.PlayerID, "drawn": out.Drawn})

	name := out.PlayerID
	if p := r.player(out.PlayerID); p != nil {
		name = p.Name
	}
	r.broadcast(EventPenaltyNotification, PenaltyPayload{
		PlayerID: out.PlayerID,
		Message:  engine.TimeoutMessage(name, out.Drawn),
	})
}
