package tournament

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pd(i int) models.PlayerData {
	return models.PlayerData{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i)}
}

func roster(n int) []models.PlayerData {
	out := make([]models.PlayerData, n)
	for i := range out {
		out[i] = pd(i + 1)
	}
	return out
}

var ignoreIDs = cmpopts.IgnoreFields(Match{}, "ID")

func ptr(p models.PlayerData) *models.PlayerData { return &p }

func TestGenerateBracket(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want []Match
	}{
		{"empty", 0, []Match{}},
		{"single gets bye", 1, []Match{
			{Round: 1, Players: [2]*models.PlayerData{ptr(pd(1)), nil}, Winner: ptr(pd(1)), Status: MatchCompleted},
		}},
		{"pair", 2, []Match{
			{Round: 1, Players: [2]*models.PlayerData{ptr(pd(1)), ptr(pd(2))}, Status: MatchPending},
		}},
		{"odd", 5, []Match{
			{Round: 1, Players: [2]*models.PlayerData{ptr(pd(1)), ptr(pd(2))}, Status: MatchPending},
			{Round: 1, Players: [2]*models.PlayerData{ptr(pd(3)), ptr(pd(4))}, Status: MatchPending},
			{Round: 1, Players: [2]*models.PlayerData{ptr(pd(5)), nil}, Winner: ptr(pd(5)), Status: MatchCompleted},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]Match, 0)
			for _, m := range GenerateBracket(roster(tt.n), 1) {
				assert.NotEmpty(t, m.ID)
				got = append(got, *m)
			}
			if diff := cmp.Diff(tt.want, got, ignoreIDs); diff != "" {
				t.Errorf("GenerateBracket(%d) mismatch (-want +got):\n%s", tt.n, diff)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	tr := New("", pd(1), 0)
	v := tr.View()
	assert.Equal(t, DefaultName, v.Name)
	assert.Equal(t, DefaultMaxParticipants, v.MaxParticipants)
	assert.Equal(t, StatusWaiting, v.Status)
	assert.Equal(t, FormatSingleElimination, v.Format)
	assert.Equal(t, "p1", v.HostID)
	require.Len(t, v.Matches, 1)
	assert.True(t, v.Matches[0].IsBye())

	assert.Equal(t, MinParticipants, New("x", pd(1), 1).View().MaxParticipants)
	assert.Equal(t, MaxParticipants, New("x", pd(1), 1000).View().MaxParticipants)
}

func TestJoinAndLeave(t *testing.T) {
	tr := New("Cup", pd(1), 3)
	require.NoError(t, tr.Join(pd(2)))
	assert.ErrorIs(t, tr.Join(pd(2)), ErrAlreadyJoined)
	require.NoError(t, tr.Join(pd(3)))
	assert.ErrorIs(t, tr.Join(pd(4)), ErrFull)
	assert.True(t, tr.IsParticipant("p3"))
	assert.False(t, tr.IsParticipant("p4"))

	v := tr.View()
	require.Len(t, v.Matches, 2, "one pairing plus a bye")
	assert.Equal(t, "p3", v.Matches[1].Players[0].ID)

	empty, err := tr.Leave("p1")
	require.NoError(t, err)
	assert.False(t, empty)
	v = tr.View()
	assert.Equal(t, "p2", v.HostID)
	want := []Match{{Round: 1, Players: [2]*models.PlayerData{ptr(pd(2)), ptr(pd(3))}, Status: MatchPending}}
	if diff := cmp.Diff(want, v.Matches, ignoreIDs); diff != "" {
		t.Errorf("bracket after leave (-want +got):\n%s", diff)
	}

	_, err = tr.Leave("p9")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = tr.Leave("p2")
	require.NoError(t, err)
	empty, err = tr.Leave("p3")
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestStartGuards(t *testing.T) {
	tr := New("Cup", pd(1), 4)
	_, err := tr.Start("p1")
	assert.ErrorIs(t, err, ErrNotEnoughParticipants)

	require.NoError(t, tr.Join(pd(2)))
	_, err = tr.Start("p2")
	assert.ErrorIs(t, err, ErrNotHost)

	matches, err := tr.Start("p1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, StatusInProgress, tr.Status())
	assert.Equal(t, 1, tr.View().CurrentRound)

	_, err = tr.Start("p1")
	assert.ErrorIs(t, err, ErrNotJoinable)
	assert.ErrorIs(t, tr.Join(pd(3)), ErrNotJoinable)
	_, err = tr.Leave("p2")
	assert.ErrorIs(t, err, ErrNotJoinable)
}

func TestMatchLifecycleGuards(t *testing.T) {
	tr := New("Cup", pd(1), 4)
	require.NoError(t, tr.Join(pd(2)))
	require.NoError(t, tr.Join(pd(3)))
	matches, err := tr.Start("p1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	id := matches[0].ID

	_, err = tr.EndMatch(id, "p1")
	assert.ErrorIs(t, err, ErrMatchNotInProgress)
	_, err = tr.StartMatch("nope", "TOURN-0001")
	assert.ErrorIs(t, err, ErrMatchNotFound)

	bye := tr.View().Matches[1]
	_, err = tr.StartMatch(bye.ID, "TOURN-0002")
	assert.ErrorIs(t, err, ErrMatchNotPending)

	m, err := tr.StartMatch(id, "TOURN-0001")
	require.NoError(t, err)
	assert.Equal(t, MatchInProgress, m.Status)
	assert.Equal(t, "TOURN-0001", m.GameID)
	_, err = tr.StartMatch(id, "TOURN-0003")
	assert.ErrorIs(t, err, ErrMatchNotPending)

	found, ok := tr.MatchByRoom("TOURN-0001")
	require.True(t, ok)
	assert.Equal(t, id, found.ID)

	_, err = tr.EndMatch(id, "p3")
	assert.ErrorIs(t, err, ErrInvalidWinner)
}

// playRound starts and finishes every pending match, letting the first
// seat win.
func playRound(t *testing.T, tr *Tournament, matches []Match) Outcome {
	t.Helper()
	var out Outcome
	for i, m := range matches {
		_, err := tr.StartMatch(m.ID, fmt.Sprintf("TOURN-%04d", i))
		require.NoError(t, err)
	}
	for _, m := range matches {
		var err error
		out, err = tr.EndMatch(m.ID, m.Players[0].ID)
		require.NoError(t, err)
	}
	return out
}

func TestFullBracketFiveParticipants(t *testing.T) {
	tr := New("Cup", pd(1), 8)
	for i := 2; i <= 5; i++ {
		require.NoError(t, tr.Join(pd(i)))
	}
	round1, err := tr.Start("p1")
	require.NoError(t, err)
	require.Len(t, round1, 2)

	// Round 1 winners p1, p3 plus bye p5.
	out := playRound(t, tr, round1)
	assert.False(t, out.Completed)
	require.Len(t, out.NextRound, 1)
	want := []Match{{Round: 2, Players: [2]*models.PlayerData{ptr(pd(1)), ptr(pd(3))}, Status: MatchPending}}
	if diff := cmp.Diff(want, out.NextRound, ignoreIDs); diff != "" {
		t.Errorf("round 2 (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, tr.View().CurrentRound)

	// Round 2: p1 beats p3, p5 has a bye.
	out = playRound(t, tr, out.NextRound)
	require.Len(t, out.NextRound, 1)
	assert.Equal(t, "p1", out.NextRound[0].Players[0].ID)
	assert.Equal(t, "p5", out.NextRound[0].Players[1].ID)

	out = playRound(t, tr, out.NextRound)
	assert.True(t, out.Completed)
	require.NotNil(t, out.Winner)
	assert.Equal(t, "p1", out.Winner.ID)

	v := tr.View()
	assert.Equal(t, StatusCompleted, v.Status)
	assert.Equal(t, "p1", v.Winner.ID)
	assert.Equal(t, 3, v.CurrentRound)
	for _, m := range v.Matches {
		assert.Equal(t, MatchCompleted, m.Status)
	}
}

func TestViewIsDetached(t *testing.T) {
	tr := New("Cup", pd(1), 4)
	require.NoError(t, tr.Join(pd(2)))
	v := tr.View()
	v.Matches[0].Players[0].Name = "mutated"
	v.Participants[0].Name = "mutated"
	again := tr.View()
	assert.Equal(t, "Player 1", again.Matches[0].Players[0].Name)
	assert.Equal(t, "Player 1", again.Participants[0].Name)
}
