package app

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jaminalder/hotseat-tic-tac-toe/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal renderer for tests: encode moves count as bytes
func testRenderer(st MatchState) []byte { return []byte(fmt.Sprintf("moves=%d", st.Moves)) }

func newStarted(t *testing.T) (*Service, string) {
	t.Helper()
	s := NewServiceWithRenderer(Options{}, testRenderer)
	st, err := s.CreateMatch()
	require.NoError(t, err)
	_, err = s.Start(st.ID, "Alice", "Bob")
	require.NoError(t, err)
	return s, st.ID
}

func selectAll(t *testing.T, s *Service, id string, moves ...int) *MatchState {
	t.Helper()
	var st *MatchState
	for _, idx := range moves {
		var err error
		st, err = s.Select(id, idx)
		require.NoError(t, err, "select %d", idx)
	}
	return st
}

func TestCreateAndGet(t *testing.T) {
	s := NewService(Options{})

	st, err := s.CreateMatch()

	require.NoError(t, err)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, domain.NotStarted, st.State)
	assert.False(t, st.Created.IsZero())
	got, ok := s.Get(st.ID)
	require.True(t, ok)
	assert.Equal(t, st.ID, got.ID)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestUnknownMatch(t *testing.T) {
	s := NewService(Options{})

	_, err := s.Start("missing", "a", "b")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Select("missing", 0)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Restart("missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.Subscribe(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStartUsesConfiguredDefaults(t *testing.T) {
	s := NewService(Options{Player1Default: "Host", Player2Default: "Guest"})
	st, _ := s.CreateMatch()

	got, err := s.Start(st.ID, "", " ")

	require.NoError(t, err)
	assert.Equal(t, "Host", got.Players[0].Name)
	assert.Equal(t, "Guest", got.Players[1].Name)
	assert.Equal(t, domain.InProgress, got.State)
}

func TestStartFallsBackToDomainDefaults(t *testing.T) {
	s := NewService(Options{})
	st, _ := s.CreateMatch()

	got, err := s.Start(st.ID, "", "")

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPlayer1, got.Players[0].Name)
	assert.Equal(t, domain.DefaultPlayer2, got.Players[1].Name)
}

func TestStartWhileInProgress(t *testing.T) {
	s, id := newStarted(t)
	selectAll(t, s, id, 4)

	st, err := s.Start(id, "Carol", "Dave")

	require.ErrorIs(t, err, domain.ErrMatchInProgress)
	require.NotNil(t, st)
	assert.Equal(t, "Alice", st.Players[0].Name)
	assert.Equal(t, 1, st.Moves)
}

func TestSelectBeforeStartIsIgnored(t *testing.T) {
	s := NewService(Options{})
	created, _ := s.CreateMatch()

	st, err := s.Select(created.ID, 5)

	require.NoError(t, err)
	assert.Equal(t, [domain.Size]domain.Mark{}, st.Board)
	assert.Equal(t, domain.NotStarted, st.State)
}

func TestSelectOutOfRange(t *testing.T) {
	s, id := newStarted(t)

	st, err := s.Select(id, 9)

	require.ErrorIs(t, err, domain.ErrOutOfRange)
	require.NotNil(t, st)
	assert.Equal(t, 0, st.Moves)
}

func TestPlayToWinAndRestart(t *testing.T) {
	s, id := newStarted(t)

	st := selectAll(t, s, id, 0, 1, 3, 4, 6)

	assert.Equal(t, domain.Finished, st.State)
	assert.Equal(t, domain.Win, st.Outcome)
	assert.Equal(t, "Alice", st.Winner)
	assert.Equal(t, "Alice won!", st.Message)

	// further selections are ignored
	st = selectAll(t, s, id, 8)
	assert.Equal(t, domain.Empty, st.Board[8])

	st, err := s.Restart(id)
	require.NoError(t, err)
	assert.Equal(t, domain.InProgress, st.State)
	assert.Equal(t, [domain.Size]domain.Mark{}, st.Board)
	assert.Equal(t, "Alice", st.Players[0].Name)
	assert.Equal(t, "", st.Winner)
	assert.Equal(t, "", st.Message)
}

func TestSubscribeAndBroadcast(t *testing.T) {
	s, id := newStarted(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, unsub, err := s.Subscribe(ctx, id)
	require.NoError(t, err)
	defer unsub()

	_, err = s.Select(id, 0)
	require.NoError(t, err)

	select {
	case b, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		assert.Equal(t, "moves=1", string(b.Payload))
		require.Len(t, b.Events, 2)
		assert.Equal(t, domain.EventBoard, b.Events[0].Type)
		assert.Equal(t, domain.EventContinue, b.Events[1].Type)
		assert.Equal(t, domain.O, b.State.Current.Mark)
	case <-ctx.Done():
		t.Fatalf("timed out waiting for broadcast")
	}
}

func TestIgnoredSelectionDoesNotBroadcast(t *testing.T) {
	s, id := newStarted(t)
	selectAll(t, s, id, 0)
	ch, unsub, err := s.Subscribe(context.Background(), id)
	require.NoError(t, err)
	defer unsub()

	selectAll(t, s, id, 0)

	select {
	case b := <-ch:
		t.Fatalf("unexpected broadcast: %+v", b.Events)
	default:
	}
}

func TestDropSlowSubscriber(t *testing.T) {
	s, id := newStarted(t)

	// Slow subscriber: never read
	slowCh, _, err := s.Subscribe(context.Background(), id)
	require.NoError(t, err)

	fastCh, unsubFast, err := s.Subscribe(context.Background(), id)
	require.NoError(t, err)
	defer unsubFast()

	for _, idx := range []int{0, 4} {
		_, err := s.Select(id, idx)
		require.NoError(t, err)
		b, ok := <-fastCh
		require.True(t, ok)
		require.NotEqual(t, domain.Empty, b.State.Board[idx])
	}

	// the slow subscriber kept its first broadcast and was then closed
	_, ok := <-slowCh
	require.True(t, ok)
	_, ok = <-slowCh
	assert.False(t, ok, "slow subscriber should be dropped")
}

// Run with -race: unsubscribing while moves are broadcast must neither race nor
// send on a closed channel.
func TestUnsubscribeRacesBroadcast(t *testing.T) {
	s, id := newStarted(t)

	for round := 0; round < 200; round++ {
		unsubs := make([]func(), 0, 4)
		for i := 0; i < 4; i++ {
			_, unsub, err := s.Subscribe(context.Background(), id)
			require.NoError(t, err)
			unsubs = append(unsubs, unsub)
		}

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func(unsub func()) {
				defer wg.Done()
				unsub()
			}(unsubs[i])
			go func(idx int) {
				defer wg.Done()
				if idx%2 == 0 {
					_, _ = s.Restart(id)
				} else {
					_, _ = s.Select(id, idx)
				}
			}(i)
		}
		wg.Wait()
	}

	st, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.InProgress, st.State)
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
	s, id := newStarted(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := s.Subscribe(ctx, id)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestServiceLogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	s := NewService(Options{Logger: &log})
	created, _ := s.CreateMatch()
	_, err := s.Start(created.ID, "Alice", "Bob")
	require.NoError(t, err)

	selectAll(t, s, created.ID, 0, 1, 3, 4, 6)

	assert.Contains(t, buf.String(), `"message":"match won"`)
	assert.Contains(t, buf.String(), `"winner":"Alice"`)
	assert.Contains(t, buf.String(), `"component":"match-service"`)
}
