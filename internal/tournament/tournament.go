// Package tournament keeps single-elimination brackets. It knows nothing
// about rooms; the registry starts a room per match and reports back the
// winner through EndMatch.
package tournament

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/whot/internal/models"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in-progress"
	MatchCompleted  MatchStatus = "completed"
)

const (
	FormatSingleElimination = "single-elimination"
	DefaultName             = "Whot Tournament"
	DefaultMaxParticipants  = 8
	MinParticipants         = 2
	MaxParticipants         = 64
)

var (
	ErrNotFound              = errors.New("Tournament not found")
	ErrNotJoinable           = errors.New("Tournament already started")
	ErrFull                  = errors.New("Tournament is full")
	ErrAlreadyJoined         = errors.New("Already joined this tournament")
	ErrNotParticipant        = errors.New("Not in this tournament")
	ErrNotHost               = errors.New("Only the host can start the tournament")
	ErrNotEnoughParticipants = errors.New("At least two participants are needed")
	ErrMatchNotFound         = errors.New("Match not found")
	ErrMatchNotPending       = errors.New("Match is not pending")
	ErrMatchNotInProgress    = errors.New("Match is not in progress")
	ErrInvalidWinner         = errors.New("Winner is not a player of this match")
)

// Match is one pairing. A nil second player marks a bye, which is created
// already completed.
type Match struct {
	ID      string                `json:"id"`
	Round   int                   `json:"round"`
	Players [2]*models.PlayerData `json:"players"`
	Winner  *models.PlayerData    `json:"winner"`
	Status  MatchStatus           `json:"status"`
	GameID  string                `json:"gameId,omitempty"`
}

// IsBye reports whether the match has a single player.
func (m *Match) IsBye() bool { return m.Players[1] == nil }

func (m *Match) player(id string) *models.PlayerData {
	for _, p := range m.Players {
		if p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

func (m *Match) clone() Match {
	c := *m
	for i, p := range m.Players {
		if p != nil {
			pc := *p
			c.Players[i] = &pc
		}
	}
	if m.Winner != nil {
		w := *m.Winner
		c.Winner = &w
	}
	return c
}

// View is a detached copy of a tournament, safe to serialize.
type View struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	HostID          string              `json:"hostId"`
	Participants    []models.PlayerData `json:"participants"`
	MaxParticipants int                 `json:"maxParticipants"`
	Status          Status              `json:"status"`
	Format          string              `json:"format"`
	CurrentRound    int                 `json:"currentRound"`
	Matches         []Match             `json:"matches"`
	Winner          *models.PlayerData  `json:"winner"`
	CreatedAt       int64               `json:"createdAt"`
}

// Tournament is a bracket under construction or in play. All methods are
// safe for concurrent use.
type Tournament struct {
	mu sync.Mutex

	id              string
	name            string
	hostID          string
	participants    []models.PlayerData
	maxParticipants int
	status          Status
	currentRound    int
	matches         []*Match
	winner          *models.PlayerData
	createdAt       time.Time
}

// GenerateBracket pairs participants in seed order for round. An odd
// count gives the last participant a completed bye.
func GenerateBracket(participants []models.PlayerData, round int) []*Match {
	matches := make([]*Match, 0, (len(participants)+1)/2)
	for i := 0; i+1 < len(participants); i += 2 {
		a, b := participants[i], participants[i+1]
		matches = append(matches, &Match{
			ID:      uuid.NewString(),
			Round:   round,
			Players: [2]*models.PlayerData{&a, &b},
			Status:  MatchPending,
		})
	}
	if len(participants)%2 == 1 {
		last := participants[len(participants)-1]
		w := last
		matches = append(matches, &Match{
			ID:      uuid.NewString(),
			Round:   round,
			Players: [2]*models.PlayerData{&last, nil},
			Winner:  &w,
			Status:  MatchCompleted,
		})
	}
	return matches
}

// New creates a waiting tournament with host as its only participant.
func New(name string, host models.PlayerData, maxParticipants int) *Tournament {
	if name == "" {
		name = DefaultName
	}
	if maxParticipants <= 0 {
		maxParticipants = DefaultMaxParticipants
	}
	if maxParticipants < MinParticipants {
		maxParticipants = MinParticipants
	}
	if maxParticipants > MaxParticipants {
		maxParticipants = MaxParticipants
	}
	t := &Tournament{
		id:              uuid.NewString(),
		name:            name,
		hostID:          host.ID,
		participants:    []models.PlayerData{host},
		maxParticipants: maxParticipants,
		status:          StatusWaiting,
		createdAt:       time.Now(),
	}
	t.regenerate()
	return t
}

func (t *Tournament) ID() string { return t.id }

// Status returns the lifecycle state.
func (t *Tournament) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// regenerate rebuilds round 1 from the roster. Assumes lock is held by
// caller.
func (t *Tournament) regenerate() {
	t.matches = GenerateBracket(t.participants, 1)
}

// IsParticipant reports whether playerID is on the roster.
func (t *Tournament) IsParticipant(playerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.participants {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// Join adds a participant while the tournament is waiting.
func (t *Tournament) Join(pd models.PlayerData) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusWaiting {
		return ErrNotJoinable
	}
	for _, p := range t.participants {
		if p.ID == pd.ID {
			return ErrAlreadyJoined
		}
	}
	if len(t.participants) >= t.maxParticipants {
		return ErrFull
	}
	t.participants = append(t.participants, pd)
	t.regenerate()
	return nil
}

// Leave removes a participant while the tournament is waiting. It reports
// whether the roster is now empty.
func (t *Tournament) Leave(playerID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusWaiting {
		return false, ErrNotJoinable
	}
	idx := -1
	for i, p := range t.participants {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, ErrNotParticipant
	}
	t.participants = append(t.participants[:idx], t.participants[idx+1:]...)
	if len(t.participants) == 0 {
		t.matches = nil
		return true, nil
	}
	if t.hostID == playerID {
		t.hostID = t.participants[0].ID
	}
	t.regenerate()
	return false, nil
}

// Start freezes the roster and opens round 1. It returns the matches that
// need a room.
func (t *Tournament) Start(hostID string) ([]Match, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if hostID != t.hostID {
		return nil, ErrNotHost
	}
	if t.status != StatusWaiting {
		return nil, ErrNotJoinable
	}
	if len(t.participants) < MinParticipants {
		return nil, ErrNotEnoughParticipants
	}
	t.status = StatusInProgress
	t.currentRound = 1
	return t.pending(), nil
}

// pending copies the pending matches of the current round. Assumes lock is
// held by caller.
func (t *Tournament) pending() []Match {
	var out []Match
	for _, m := range t.matches {
		if m.Round == t.currentRound && m.Status == MatchPending {
			out = append(out, m.clone())
		}
	}
	return out
}

func (t *Tournament) match(id string) *Match {
	for _, m := range t.matches {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// StartMatch binds a pending match to the room playing it.
func (t *Tournament) StartMatch(matchID, roomCode string) (Match, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.match(matchID)
	if m == nil {
		return Match{}, ErrMatchNotFound
	}
	if m.Status != MatchPending || m.IsBye() {
		return Match{}, ErrMatchNotPending
	}
	m.Status = MatchInProgress
	m.GameID = roomCode
	return m.clone(), nil
}

// Outcome describes what EndMatch changed.
type Outcome struct {
	Match Match
	// NextRound holds the pending matches of a freshly opened round.
	NextRound []Match
	Completed bool
	Winner    *models.PlayerData
}

// EndMatch records winnerID for an in-progress match. When that completes
// the round, the next round is paired from the winners in match order, or
// the tournament completes if a single winner remains.
func (t *Tournament) EndMatch(matchID, winnerID string) (Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.match(matchID)
	if m == nil {
		return Outcome{}, ErrMatchNotFound
	}
	if m.Status != MatchInProgress {
		return Outcome{}, ErrMatchNotInProgress
	}
	w := m.player(winnerID)
	if w == nil {
		return Outcome{}, ErrInvalidWinner
	}
	m.Winner = w
	m.Status = MatchCompleted
	out := Outcome{Match: m.clone()}

	var winners []models.PlayerData
	for _, rm := range t.matches {
		if rm.Round != m.Round {
			continue
		}
		if rm.Status != MatchCompleted {
			return out, nil
		}
		if rm.Winner != nil {
			winners = append(winners, *rm.Winner)
		}
	}

	if len(winners) <= 1 {
		t.status = StatusCompleted
		if len(winners) == 1 {
			champ := winners[0]
			t.winner = &champ
		}
		out.Completed = true
		if t.winner != nil {
			c := *t.winner
			out.Winner = &c
		}
		return out, nil
	}
	t.currentRound = m.Round + 1
	t.matches = append(t.matches, GenerateBracket(winners, t.currentRound)...)
	out.NextRound = t.pending()
	return out, nil
}

// MatchByRoom finds the in-progress match played in roomCode.
func (t *Tournament) MatchByRoom(roomCode string) (Match, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.matches {
		if m.GameID == roomCode && m.Status == MatchInProgress {
			return m.clone(), true
		}
	}
	return Match{}, false
}

// View returns a detached copy.
func (t *Tournament) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := View{
		ID:              t.id,
		Name:            t.name,
		HostID:          t.hostID,
		Participants:    append([]models.PlayerData{}, t.participants...),
		MaxParticipants: t.maxParticipants,
		Status:          t.status,
		Format:          FormatSingleElimination,
		CurrentRound:    t.currentRound,
		Matches:         make([]Match, len(t.matches)),
		CreatedAt:       t.createdAt.UnixMilli(),
	}
	for i, m := range t.matches {
		v.Matches[i] = m.clone()
	}
	if t.winner != nil {
		w := *t.winner
		v.Winner = &w
	}
	return v
}
