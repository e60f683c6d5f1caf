// internal/game/sync_state.go
package game

import (
	"sort"

	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/models"
)

// roomView builds the public room description. Assumes lock is held by
// caller.
func (r *Room) roomView() RoomView {
	v := RoomView{
		ID:                  r.ID,
		Code:                r.Code,
		HostID:              r.HostID,
		Status:              r.Status,
		Config:              r.Config,
		Players:             make([]models.Player, len(r.Players)),
		PlayerCount:         len(r.Players),
		MaxPlayers:          r.Config.MaxPlayers,
		Paused:              r.paused(),
		DisconnectedPlayers: make([]string, 0, len(r.disconnected)),
		TournamentID:        r.TournamentID,
		MatchID:             r.MatchID,
	}
	for i, p := range r.Players {
		v.Players[i] = *p
	}
	for id := range r.disconnected {
		v.DisconnectedPlayers = append(v.DisconnectedPlayers, id)
	}
	sort.Strings(v.DisconnectedPlayers)
	return v
}

// View returns the public room description.
func (r *Room) View() RoomView {
	r.lock()
	defer r.unlock()
	return r.roomView()
}

// gameView generates a snapshot of the match tailored to forPlayer: their
// own hand is revealed, every other hand is reduced to a count, and the
// draw pile is reduced to its size. Assumes lock is held by caller.
func (r *Room) gameView(forPlayer string) *GameView {
	m := r.Match
	if m == nil {
		return nil
	}
	v := &GameView{
		RoomID:                 r.Code,
		HostID:                 r.HostID,
		Status:                 m.Status,
		Players:                make([]PlayerView, len(m.Players)),
		CurrentPlayerIndex:     m.CurrentPlayerIndex,
		CurrentShape:           m.CurrentShape,
		CurrentNumber:          m.CurrentNumber,
		PendingPicks:           m.PendingPicks,
		TurnDirection:          m.TurnDirection,
		AwaitingShapeSelection: m.AwaitingShapeSelection,
		WinnerID:               m.WinnerID,
		GameMode:               m.GameMode,
		SpeedMode:              r.Config.SpeedMode,
		Skin:                   r.Config.Skin,
		DrawPileCount:          len(m.DrawPile),
		DiscardCount:           len(m.DiscardPile),
		Logs:                   append([]string(nil), m.Logs...),
		LastCardDeclared:       append([]string{}, m.LastCardDeclared...),
		Explanation:            m.Explanation,
		ChatHistory:            append([]models.ChatMessage{}, r.ChatHistory...),
		TurnTimeLeft:           r.TurnTimeLeft,
		IsPaused:               r.paused(),
	}
	if cur := m.CurrentPlayer(); cur != nil {
		v.CurrentPlayerID = cur.ID
	}
	if top, ok := m.TopCard(); ok {
		v.DiscardTop = &top
	}
	for i, mp := range m.Players {
		pv := PlayerView{
			ID:          mp.ID,
			Name:        mp.Name,
			Avatar:      mp.Avatar,
			HandCount:   len(mp.Hand),
			IsSpectator: mp.IsSpectator,
			Score:       mp.Score,
		}
		if p := r.player(mp.ID); p != nil {
			pv.IsConnected = p.IsConnected
		}
		if mp.ID == forPlayer {
			pv.Hand = append([]engine.Card{}, mp.Hand...)
		}
		v.Players[i] = pv
	}
	return v
}

// Snapshot returns the match as forPlayer may see it, or nil before the
// first deal.
func (r *Room) Snapshot(forPlayer string) *GameView {
	r.lock()
	defer r.unlock()
	return r.gameView(forPlayer)
}

// sendGameStarted delivers the full room and a personalized match to p.
// Assumes lock is held by caller.
func (r *Room) sendGameStarted(p *models.Player) {
	if r.Match == nil {
		return
	}
	r.sendTo(p, EventGameStarted, GameStartedPayload{
		Room:                   r.roomView(),
		GameState:              r.gameView(p.ID),
		AwaitingShapeSelection: r.Match.AwaitingShapeSelection,
	})
}

// broadcastState sends each connected player their own snapshot. Assumes
// lock is held by caller.
func (r *Room) broadcastState() {
	if r.Match == nil {
		return
	}
	for _, p := range r.Players {
		if !p.IsConnected {
			continue
		}
		r.sendTo(p, EventGameStateUpdate, GameStatePayload{
			GameState:              r.gameView(p.ID),
			AwaitingShapeSelection: r.Match.AwaitingShapeSelection,
		})
	}
}
