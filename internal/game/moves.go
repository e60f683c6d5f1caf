package game

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/models"
)

// checkMove runs the room-level guards shared by every move. Assumes lock
// is held by caller.
func (r *Room) checkMove() error {
	if r.closed {
		return ErrRoomClosed
	}
	if r.Match == nil || r.Status != StatusPlaying {
		return engine.ErrNotPlaying
	}
	if r.paused() {
		return ErrGamePaused
	}
	return nil
}

// PlayCard plays cardID for playerID.
func (r *Room) PlayCard(playerID, cardID string) error {
	r.lock()
	defer r.unlock()

	if err := r.checkMove(); err != nil {
		return err
	}
	card, err := engine.Play(r.Match, playerID, cardID, r.rng)
	if err != nil {
		return err
	}
	r.logAction(playerID, "play_card", map[string]interface{}{
		"cardId": card.ID,
		"shape":  string(card.Shape),
		"number": card.Number,
	})
	r.afterMove()
	return nil
}

// DrawCard draws for playerID, absorbing any pending penalty.
func (r *Room) DrawCard(playerID string) error {
	r.lock()
	defer r.unlock()

	if err := r.checkMove(); err != nil {
		return err
	}
	n, err := engine.Draw(r.Match, playerID, r.rng)
	if err != nil {
		return err
	}
	r.logAction(playerID, "draw_card", map[string]interface{}{"count": n})
	r.afterMove()
	return nil
}

// SelectShape resolves a pending WHOT for playerID.
func (r *Room) SelectShape(playerID string, shape engine.Shape) error {
	r.lock()
	defer r.unlock()

	if err := r.checkMove(); err != nil {
		return err
	}
	if err := engine.ResolveShape(r.Match, playerID, shape); err != nil {
		return err
	}
	r.logAction(playerID, "select_shape", map[string]interface{}{"shape": string(shape)})
	r.afterMove()
	return nil
}

// afterMove resets the turn clock or closes the match, then fans out the
// new state. Assumes lock is held by caller.
func (r *Room) afterMove() {
	if r.Match.Status == engine.StatusFinished {
		r.finishMatch()
	} else {
		r.restartClock()
	}
	r.broadcastState()
}

// CallLastCard announces that playerID is down to one card.
func (r *Room) CallLastCard(playerID string) error {
	r.lock()
	defer r.unlock()

	if err := r.checkMove(); err != nil {
		return err
	}
	if err := engine.DeclareLastCard(r.Match, playerID); err != nil {
		return err
	}
	r.logAction(playerID, "call_last_card", nil)
	r.broadcastState()
	return nil
}

// Chat relays a message to the room. History is kept only during play.
func (r *Room) Chat(playerID, text string) (models.ChatMessage, error) {
	r.lock()
	defer r.unlock()

	if r.closed {
		return models.ChatMessage{}, ErrRoomClosed
	}
	p := r.player(playerID)
	if p == nil {
		return models.ChatMessage{}, ErrNotInRoom
	}
	if !r.Config.ChatEnabled() {
		return models.ChatMessage{}, ErrChatDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > ChatMaxRunes {
		text = string([]rune(text)[:ChatMaxRunes])
	}

	msg := models.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   p.ID,
		SenderName: p.Name,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
	}
	if r.Status == StatusPlaying {
		r.ChatHistory = append(r.ChatHistory, msg)
		if len(r.ChatHistory) > ChatHistoryLimit {
			r.ChatHistory = r.ChatHistory[len(r.ChatHistory)-ChatHistoryLimit:]
		}
	}
	r.broadcast(EventChatMessage, msg)
	return msg, nil
}

// Pause suspends play at the host's request.
func (r *Room) Pause(playerID string) error {
	r.lock()
	defer r.unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if playerID != r.HostID {
		return ErrNotHost
	}
	if r.Status != StatusPlaying {
		return engine.ErrNotPlaying
	}
	if r.hostPaused {
		return nil
	}
	was := r.paused()
	r.hostPaused = true
	r.settlePause(was)
	r.logAction(playerID, "pause_game", nil)
	r.broadcast(EventGamePaused, GamePausedPayload{Reason: PauseReasonHost})
	r.broadcastState()
	return nil
}

// Resume lifts a host pause. Play stays suspended while any disconnection
// is outstanding.
func (r *Room) Resume(playerID string) error {
	r.lock()
	defer r.unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if playerID != r.HostID {
		return ErrNotHost
	}
	if r.Status != StatusPlaying {
		return engine.ErrNotPlaying
	}
	if !r.hostPaused {
		return nil
	}
	was := r.paused()
	r.hostPaused = false
	r.settlePause(was)
	r.logAction(playerID, "resume_game", nil)
	r.broadcastState()
	return nil
}
