package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/whot/internal/game"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/jason-s-yu/whot/internal/tournament"
	"github.com/sirupsen/logrus"
)

// FormatCode renders a room code such as NAIJA-4821.
func FormatCode(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// Run sweeps long-disconnected players until ctx ends.
func (reg *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(reg.opts.SweepInterval)
	defer ticker.Stop()
	reg.log.WithField("interval", reg.opts.SweepInterval).Info("Registry sweep started")
	for {
		select {
		case <-ctx.Done():
			reg.log.Info("Registry sweep stopped")
			return
		case now := <-ticker.C:
			reg.Sweep(now)
		}
	}
}

// Sweep removes players offline longer than the disconnect timeout from
// every room and returns how many were removed.
func (reg *Registry) Sweep(now time.Time) int {
	reg.mu.RLock()
	rooms := make([]*game.Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()

	n := 0
	for _, r := range rooms {
		ids := r.SweepDisconnected(now, reg.opts.DisconnectTimeout)
		if len(ids) > 0 {
			reg.log.WithFields(logrus.Fields{"room": r.Code, "players": ids}).Info("Swept disconnected players")
		}
		n += len(ids)
	}
	return n
}

// onRoomFinished runs outside the room lock once a match ends.
func (reg *Registry) onRoomFinished(res models.MatchResult) {
	reg.archive(res)
	if res.TournamentID == "" {
		return
	}
	reg.endTournamentMatch(res.TournamentID, res.MatchID, res.RoomCode, res.WinnerID)
}

// onRoomEmpty deletes a room nobody is left in. A tournament room that
// never produced a result forfeits its match to the first seat.
func (reg *Registry) onRoomEmpty(code string) {
	r, ok := reg.Room(code)
	if !ok {
		return
	}
	tid := r.TournamentID
	reg.DeleteRoom(code)
	if tid == "" {
		return
	}
	t, ok := reg.Tournament(tid)
	if !ok {
		return
	}
	m, ok := t.MatchByRoom(code)
	if !ok {
		return
	}
	reg.log.WithFields(logrus.Fields{"room": code, "tournament": tid}).Warn("Tournament room emptied, forfeiting match")
	reg.endTournamentMatch(tid, m.ID, code, m.Players[0].ID)
}

func (reg *Registry) archive(res models.MatchResult) {
	if reg.opts.Archive == nil {
		return
	}
	archive, log := reg.opts.Archive, reg.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := archive.StoreMatchResult(ctx, res); err != nil {
			log.WithError(err).WithField("room", res.RoomCode).Error("Failed archiving match result")
		}
	}()
}

// ---------------------------------------------------------------------------
// Tournament orchestration
// ---------------------------------------------------------------------------

// StartTournament opens round 1 and spawns a room for each pending match.
func (reg *Registry) StartTournament(t *tournament.Tournament, hostID string) error {
	matches, err := t.Start(hostID)
	if err != nil {
		return err
	}
	reg.log.WithFields(logrus.Fields{"tournament": t.ID(), "matches": len(matches)}).Info("Tournament started")
	reg.broadcast(t.ID(), game.EventTournamentUpdated, t.View())
	for i := range matches {
		reg.startMatch(t, matches[i])
	}
	return nil
}

// MatchStartedPayload is carried by tournament-match-started.
type MatchStartedPayload struct {
	Tournament tournament.View  `json:"tournament"`
	Match      tournament.Match `json:"match"`
}

// MatchEndedPayload is carried by tournament-match-ended.
type MatchEndedPayload struct {
	Tournament tournament.View    `json:"tournament"`
	Match      tournament.Match   `json:"match"`
	Winner     *models.PlayerData `json:"winner"`
}

// CompletedPayload is carried by tournament-completed.
type CompletedPayload struct {
	Tournament tournament.View    `json:"tournament"`
	Winner     *models.PlayerData `json:"winner"`
}

// startMatch creates the two-seat room for m and seats whichever of its
// players are connected. Absent players can join by code later.
func (reg *Registry) startMatch(t *tournament.Tournament, m tournament.Match) {
	logger := reg.log.WithFields(logrus.Fields{"tournament": t.ID(), "match": m.ID})
	r, err := reg.CreateRoom(models.RoomConfig{MaxPlayers: 2}, TournamentPrefix, &m, t.ID())
	if err != nil {
		logger.WithError(err).Error("Cannot create match room")
		return
	}
	started, err := t.StartMatch(m.ID, r.Code)
	if err != nil {
		logger.WithError(err).Error("Cannot start match")
		reg.DeleteRoom(r.Code)
		return
	}

	for _, p := range m.Players {
		if p == nil {
			continue
		}
		c, ok := reg.ConnForPlayer(p.ID)
		if !ok {
			continue
		}
		if n := reg.opts.Notifier; n != nil {
			n.Subscribe(c.ID, r.Code)
		}
		if err := r.Join(c.ID, *p); err != nil {
			logger.WithError(err).WithField("player", p.ID).Warn("Cannot seat player in match room")
			continue
		}
		reg.UpdateConn(c.ID, func(cc *Conn) { cc.RoomCode = r.Code })
	}
	logger.WithField("room", r.Code).Info("Tournament match started")
	reg.broadcast(t.ID(), game.EventTournamentMatchStarted, MatchStartedPayload{Tournament: t.View(), Match: started})
}

// endTournamentMatch records a result, tears the room down and opens the
// next round or completes the tournament.
func (reg *Registry) endTournamentMatch(tournamentID, matchID, roomCode, winnerID string) {
	t, ok := reg.Tournament(tournamentID)
	if !ok {
		return
	}
	logger := reg.log.WithFields(logrus.Fields{"tournament": tournamentID, "match": matchID})

	out, err := t.EndMatch(matchID, winnerID)
	if errors.Is(err, tournament.ErrInvalidWinner) {
		// No surviving winner: the first seat advances.
		if m, found := t.MatchByRoom(roomCode); found {
			out, err = t.EndMatch(matchID, m.Players[0].ID)
		}
	}
	if err != nil {
		logger.WithError(err).Warn("Cannot end tournament match")
		return
	}
	reg.DeleteRoom(roomCode)
	logger.WithField("winner", out.Match.Winner.ID).Info("Tournament match ended")

	reg.broadcast(tournamentID, game.EventTournamentMatchEnded, MatchEndedPayload{
		Tournament: t.View(),
		Match:      out.Match,
		Winner:     out.Match.Winner,
	})
	if out.Completed {
		logger.Info("Tournament completed")
		reg.broadcast(tournamentID, game.EventTournamentCompleted, CompletedPayload{Tournament: t.View(), Winner: out.Winner})
		return
	}
	for i := range out.NextRound {
		reg.startMatch(t, out.NextRound[i])
	}
}

func (reg *Registry) broadcast(channel string, t game.EventType, payload any) {
	if n := reg.opts.Notifier; n != nil {
		n.Broadcast(channel, game.Event{Type: t, Payload: payload})
	}
}
