// Package handlers is the transport edge: it decodes inbound frames,
// routes them to rooms and tournaments, and delivers outbound events.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/auth"
	"github.com/jason-s-yu/whot/internal/game"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/jason-s-yu/whot/internal/registry"
	"github.com/jason-s-yu/whot/internal/tournament"
	"github.com/sirupsen/logrus"
)

// DispatcherOptions wires a Dispatcher. Tokens may be nil, in which case no
// session tokens are issued or checked.
type DispatcherOptions struct {
	Registry *registry.Registry
	Notifier registry.Notifier
	Tokens   *auth.TokenManager
	// RequireSessionToken rejects reconnect-room without a valid token.
	RequireSessionToken    bool
	DefaultMaxParticipants int
	Logger                 *logrus.Entry
}

// Dispatcher routes inbound commands for every connection.
type Dispatcher struct {
	reg    *registry.Registry
	notify registry.Notifier
	tokens *auth.TokenManager

	requireToken    bool
	maxParticipants int
	log             *logrus.Entry
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.DefaultMaxParticipants <= 0 {
		opts.DefaultMaxParticipants = tournament.DefaultMaxParticipants
	}
	return &Dispatcher{
		reg:             opts.Registry,
		notify:          opts.Notifier,
		tokens:          opts.Tokens,
		requireToken:    opts.RequireSessionToken,
		maxParticipants: opts.DefaultMaxParticipants,
		log:             opts.Logger.WithField("component", "dispatcher"),
	}
}

// Connect registers a fresh, anonymous connection.
func (d *Dispatcher) Connect(connID string) {
	d.reg.UpsertConn(registry.Conn{ID: connID})
	d.log.WithField("conn", connID).Debug("Connection opened")
}

// Handle runs one inbound command. Failures are reported to the sender
// only; a panic is logged and the connection stays up.
func (d *Dispatcher) Handle(ctx context.Context, connID string, env Envelope) {
	logger := d.log.WithFields(logrus.Fields{"conn": connID, "type": env.Type})
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Errorf("Recovered while handling command\n%s", debug.Stack())
			d.fail(connID, env.Type, fmt.Errorf("panic: %v", r))
		}
	}()
	if ctx.Err() != nil {
		return
	}

	var err error
	switch env.Type {
	case CmdCreateRoom:
		err = d.createRoom(connID, env.Payload)
	case CmdJoinRoom:
		err = d.joinRoom(connID, env.Payload)
	case CmdReconnectRoom:
		err = d.reconnectRoom(connID, env.Payload)
	case CmdLeaveRoom:
		err = d.leaveRoom(connID)
	case CmdPlayerReady:
		var ready bool
		if err = decode(env.Payload, &ready); err == nil {
			err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.SetReady(pid, ready) })
		}
	case CmdStartGame:
		err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.Start(pid) })
	case CmdPlayCard:
		var cardID string
		if err = decode(env.Payload, &cardID); err == nil {
			err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.PlayCard(pid, cardID) })
		}
	case CmdDrawCard:
		err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.DrawCard(pid) })
	case CmdSelectShape:
		var shape engine.Shape
		if err = decode(env.Payload, &shape); err == nil {
			err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.SelectShape(pid, shape) })
		}
	case CmdCallLastCard:
		err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.CallLastCard(pid) })
	case CmdChatMessage:
		var text string
		if err = decode(env.Payload, &text); err == nil {
			err = d.inRoom(connID, func(r *game.Room, pid string) error {
				_, err := r.Chat(pid, text)
				return err
			})
		}
	case CmdPauseGame:
		err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.Pause(pid) })
	case CmdResumeGame:
		err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.Resume(pid) })
	case CmdReplaceDisconnected:
		var p ReplacePayload
		if err = decode(env.Payload, &p); err == nil {
			err = d.inRoom(connID, func(r *game.Room, pid string) error { return r.ReplaceDisconnected(pid, p.PlayerID) })
		}
	case CmdCreateTournament:
		err = d.createTournament(connID, env.Payload)
	case CmdJoinTournament:
		err = d.joinTournament(connID, env.Payload)
	case CmdLeaveTournament:
		err = d.leaveTournament(connID)
	case CmdStartTournament:
		err = d.startTournament(connID)
	default:
		err = fmt.Errorf("%w: unknown command %q", ErrInvalidPayload, env.Type)
	}

	if err != nil {
		logger.WithError(err).Debug("Command rejected")
		d.fail(connID, env.Type, err)
	}
}

// Disconnect handles a closed socket. Room seats survive for the
// reconnection window; tournament entries survive until the bracket ends.
func (d *Dispatcher) Disconnect(connID string) {
	c, ok := d.reg.Conn(connID)
	if !ok {
		return
	}
	d.reg.DeleteConn(connID)
	if c.RoomCode != "" && c.Player.ID != "" {
		if r, ok := d.reg.Room(c.RoomCode); ok {
			r.Disconnect(c.Player.ID, connID)
		}
	}
	d.log.WithFields(logrus.Fields{"conn": connID, "player": c.Player.ID, "room": c.RoomCode}).Info("Connection closed")
}

// ---------------------------------------------------------------------------
// Rooms
// ---------------------------------------------------------------------------

func (d *Dispatcher) createRoom(connID string, raw json.RawMessage) error {
	var p CreateRoomPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if !p.PlayerData.Valid() {
		return fmt.Errorf("%w: playerData requires id and name", ErrInvalidPayload)
	}
	if _, err := d.conn(connID); err != nil {
		return err
	}
	d.detachRoom(connID)

	r, err := d.reg.CreateRoom(p.config(), registry.RoomPrefix, nil, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateRoomFailed, err)
	}
	d.notify.Subscribe(connID, r.Code)
	if err := r.Host(connID, p.PlayerData); err != nil {
		d.notify.Unsubscribe(connID, r.Code)
		d.reg.DeleteRoom(r.Code)
		return fmt.Errorf("%w: %w", ErrCreateRoomFailed, err)
	}
	d.bind(connID, p.PlayerData, r.Code)
	return nil
}

func (d *Dispatcher) joinRoom(connID string, raw json.RawMessage) error {
	var p JoinRoomPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if !p.PlayerData.Valid() {
		return fmt.Errorf("%w: playerData requires id and name", ErrInvalidPayload)
	}
	c, err := d.conn(connID)
	if err != nil {
		return err
	}
	r, ok := d.reg.Room(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if c.RoomCode != r.Code {
		d.detachRoom(connID)
	}

	// Subscribe first so the room's join broadcast reaches the newcomer.
	d.notify.Subscribe(connID, r.Code)
	if err := r.Join(connID, p.PlayerData); err != nil {
		if c.RoomCode != r.Code {
			d.notify.Unsubscribe(connID, r.Code)
		}
		return err
	}
	d.bind(connID, p.PlayerData, r.Code)
	return nil
}

func (d *Dispatcher) reconnectRoom(connID string, raw json.RawMessage) error {
	var p ReconnectRoomPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if !p.PlayerData.Valid() {
		return fmt.Errorf("%w: playerData requires id and name", ErrInvalidPayload)
	}
	c, err := d.conn(connID)
	if err != nil {
		return err
	}
	r, ok := d.reg.Room(p.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if err := d.checkSession(p); err != nil {
		return err
	}
	if c.RoomCode != r.Code {
		d.detachRoom(connID)
	}

	d.notify.Subscribe(connID, r.Code)
	if err := r.Reconnect(connID, p.PlayerData); err != nil {
		if c.RoomCode != r.Code {
			d.notify.Unsubscribe(connID, r.Code)
		}
		return err
	}
	d.bind(connID, p.PlayerData, r.Code)
	return nil
}

func (d *Dispatcher) checkSession(p ReconnectRoomPayload) error {
	if d.tokens == nil {
		return nil
	}
	if p.SessionToken == "" {
		if d.requireToken {
			return fmt.Errorf("%w: session token required", ErrReconnectFailed)
		}
		return nil
	}
	return d.tokens.VerifyFor(p.SessionToken, p.PlayerData.ID, p.RoomCode)
}

func (d *Dispatcher) leaveRoom(connID string) error {
	c, err := d.conn(connID)
	if err != nil {
		return err
	}
	if c.RoomCode == "" {
		return game.ErrNotInRoom
	}
	r, ok := d.reg.Room(c.RoomCode)
	d.notify.Unsubscribe(connID, c.RoomCode)
	d.reg.UpdateConn(connID, func(c *registry.Conn) { c.RoomCode = "" })
	if !ok {
		return nil
	}
	return r.Leave(c.Player.ID)
}

// detachRoom leaves whatever room the connection is bound to. Errors are
// ignored; the room may already be gone.
func (d *Dispatcher) detachRoom(connID string) {
	c, ok := d.reg.Conn(connID)
	if !ok || c.RoomCode == "" {
		return
	}
	d.notify.Unsubscribe(connID, c.RoomCode)
	d.reg.UpdateConn(connID, func(c *registry.Conn) { c.RoomCode = "" })
	if r, ok := d.reg.Room(c.RoomCode); ok {
		if err := r.Leave(c.Player.ID); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{"conn": connID, "room": c.RoomCode}).Debug("Leave on rebind failed")
		}
	}
}

// bind records the seated identity and hands out a session token. A
// socket previously seated as the same player loses the seat.
func (d *Dispatcher) bind(connID string, pd models.PlayerData, code string) {
	d.reg.UpdateConn(connID, func(c *registry.Conn) {
		c.Player = pd
		c.RoomCode = code
	})
	for _, stale := range d.reg.TakeSeat(pd.ID, code, connID) {
		d.notify.Unsubscribe(stale, code)
		d.log.WithFields(logrus.Fields{"conn": stale, "player": pd.ID, "room": code}).Info("Seat moved to a new connection")
	}
	if d.tokens == nil {
		return
	}
	token, err := d.tokens.Generate(pd.ID, code, time.Now())
	if err != nil {
		d.log.WithError(err).WithField("player", pd.ID).Warn("Failed to issue session token")
		return
	}
	d.notify.Send(connID, game.Event{
		Type:    game.EventSession,
		Payload: SessionPayload{Token: token, RoomCode: code, PlayerID: pd.ID},
	})
}

// inRoom runs f against the room the connection is seated in.
func (d *Dispatcher) inRoom(connID string, f func(r *game.Room, playerID string) error) error {
	c, err := d.conn(connID)
	if err != nil {
		return err
	}
	if c.RoomCode == "" || c.Player.ID == "" {
		return game.ErrNotInRoom
	}
	r, ok := d.reg.Room(c.RoomCode)
	if !ok {
		return ErrRoomNotFound
	}
	return f(r, c.Player.ID)
}

// ---------------------------------------------------------------------------
// Tournaments
// ---------------------------------------------------------------------------

func (d *Dispatcher) createTournament(connID string, raw json.RawMessage) error {
	var p CreateTournamentPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if !p.PlayerData.Valid() {
		return fmt.Errorf("%w: playerData requires id and name", ErrInvalidPayload)
	}
	if _, err := d.conn(connID); err != nil {
		return err
	}
	d.detachTournament(connID)

	limit := p.MaxParticipants
	if limit <= 0 {
		limit = d.maxParticipants
	}
	t := tournament.New(p.Name, p.PlayerData, limit)
	d.reg.UpsertTournament(t)
	d.notify.Subscribe(connID, t.ID())
	d.bindTournament(connID, p.PlayerData, t.ID())

	d.log.WithFields(logrus.Fields{"tournament": t.ID(), "player": p.PlayerData.ID}).Info("Tournament created")
	d.notify.Send(connID, game.Event{Type: game.EventTournamentCreated, Payload: t.View()})
	return nil
}

func (d *Dispatcher) joinTournament(connID string, raw json.RawMessage) error {
	var p JoinTournamentPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if !p.PlayerData.Valid() {
		return fmt.Errorf("%w: playerData requires id and name", ErrInvalidPayload)
	}
	c, err := d.conn(connID)
	if err != nil {
		return err
	}
	t, ok := d.reg.Tournament(p.TournamentID)
	if !ok {
		return tournament.ErrNotFound
	}

	// A participant arriving on a new socket is re-attached, whatever the
	// bracket's state.
	rejoin := c.TournamentID != t.ID() && t.IsParticipant(p.PlayerData.ID)
	if !rejoin {
		if err := t.Join(p.PlayerData); err != nil {
			return err
		}
	}
	if c.TournamentID != t.ID() {
		d.detachTournament(connID)
	}
	d.notify.Subscribe(connID, t.ID())
	d.bindTournament(connID, p.PlayerData, t.ID())

	view := t.View()
	d.notify.Send(connID, game.Event{Type: game.EventTournamentJoined, Payload: view})
	if !rejoin {
		d.notify.Broadcast(t.ID(), game.Event{Type: game.EventTournamentUpdated, Payload: view})
	}
	return nil
}

func (d *Dispatcher) leaveTournament(connID string) error {
	c, err := d.conn(connID)
	if err != nil {
		return err
	}
	if c.TournamentID == "" {
		return tournament.ErrNotParticipant
	}
	t, ok := d.reg.Tournament(c.TournamentID)
	if !ok {
		return tournament.ErrNotFound
	}
	empty, err := t.Leave(c.Player.ID)
	if err != nil {
		return err
	}
	d.notify.Unsubscribe(connID, t.ID())
	d.reg.UpdateConn(connID, func(c *registry.Conn) { c.TournamentID = "" })
	if empty {
		d.reg.DeleteTournament(t.ID())
		d.log.WithField("tournament", t.ID()).Info("Tournament removed")
		return nil
	}
	d.notify.Broadcast(t.ID(), game.Event{Type: game.EventTournamentUpdated, Payload: t.View()})
	return nil
}

func (d *Dispatcher) startTournament(connID string) error {
	c, err := d.conn(connID)
	if err != nil {
		return err
	}
	if c.TournamentID == "" {
		return tournament.ErrNotParticipant
	}
	t, ok := d.reg.Tournament(c.TournamentID)
	if !ok {
		return tournament.ErrNotFound
	}
	return d.reg.StartTournament(t, c.Player.ID)
}

// detachTournament drops the connection from its current tournament
// channel. Waiting rosters also lose the player.
func (d *Dispatcher) detachTournament(connID string) {
	c, ok := d.reg.Conn(connID)
	if !ok || c.TournamentID == "" {
		return
	}
	d.notify.Unsubscribe(connID, c.TournamentID)
	d.reg.UpdateConn(connID, func(c *registry.Conn) { c.TournamentID = "" })
	t, ok := d.reg.Tournament(c.TournamentID)
	if !ok || t.Status() != tournament.StatusWaiting {
		return
	}
	if empty, err := t.Leave(c.Player.ID); err == nil {
		if empty {
			d.reg.DeleteTournament(t.ID())
			return
		}
		d.notify.Broadcast(t.ID(), game.Event{Type: game.EventTournamentUpdated, Payload: t.View()})
	}
}

func (d *Dispatcher) bindTournament(connID string, pd models.PlayerData, id string) {
	d.reg.UpdateConn(connID, func(c *registry.Conn) {
		c.Player = pd
		c.TournamentID = id
	})
}

// ---------------------------------------------------------------------------
// Replies
// ---------------------------------------------------------------------------

func (d *Dispatcher) conn(connID string) (registry.Conn, error) {
	c, ok := d.reg.Conn(connID)
	if !ok {
		return registry.Conn{}, ErrConnectionNotReady
	}
	return c, nil
}

// fail reports err to the sender. Move errors use move-invalid.
func (d *Dispatcher) fail(connID string, cmd Command, err error) {
	if isMoveError(err) {
		d.notify.Send(connID, game.Event{Type: game.EventMoveInvalid, Payload: game.MoveInvalidPayload{Error: err.Error()}})
		return
	}
	payload := errorPayload(cmd, err)
	if payload.Type == TypeServerError {
		d.log.WithError(err).WithFields(logrus.Fields{"conn": connID, "type": cmd}).Error("Command failed")
	}
	d.notify.Send(connID, game.Event{Type: game.EventError, Payload: payload})
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}
