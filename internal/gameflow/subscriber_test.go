package gameflow

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/engine"
	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/room"
)

const testRoom = "r1"

var seats = []string{
	"11111111-1111-1111-1111-111111111111",
	"22222222-2222-2222-2222-222222222222",
	"33333333-3333-3333-3333-333333333333",
	"44444444-4444-4444-4444-444444444444",
}

type fakeRooms struct {
	mu     sync.Mutex
	room   room.Room
	status room.Status
	left   []string
}

func (f *fakeRooms) Get(roomID string) (room.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if roomID != f.room.ID {
		return room.Room{}, room.ErrNotFound
	}
	r := f.room
	r.Status = f.status
	return r, nil
}

func (f *fakeRooms) SetStatus(roomID string, status room.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	return nil
}

func (f *fakeRooms) Leave(roomID, playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, playerID)
	return nil
}

type sinkError struct {
	player, code string
}

type fakeSink struct {
	mu   sync.Mutex
	errs []sinkError
}

func (f *fakeSink) SendError(roomID, playerID, code, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, sinkError{player: playerID, code: code})
}

func (f *fakeSink) codes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.errs))
	for i, e := range f.errs {
		out[i] = e.code
	}
	return out
}

type fixture struct {
	bus   *events.Bus
	rooms *fakeRooms
	sink  *fakeSink
	games *Service
	sub   *Subscriber
	clock *quartz.Mock
	ch    <-chan events.Event
	done  chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	bus := events.NewBus(logger)
	clock := quartz.NewMock(t)
	rooms := &fakeRooms{room: room.Room{
		ID:      testRoom,
		Host:    seats[0],
		Players: append([]string(nil), seats...),
		Ready:   append([]string(nil), seats...),
	}, status: room.StatusWaiting}
	sink := &fakeSink{}
	games := NewService(rooms, clock, rand.New(rand.NewSource(42)), logger)
	sub := NewSubscriber(bus, games, rooms, sink, logger)

	ch, cancel := bus.Subscribe(testRoom, "test")
	t.Cleanup(cancel)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sub.Run(ctx, testRoom)
	}()
	t.Cleanup(func() {
		stop()
		<-done
	})

	// Wait for Run's bus subscription before any test publishes.
	require.Eventually(t, func() bool {
		return bus.Subscribers(testRoom) == 2
	}, 2*time.Second, time.Millisecond)

	return &fixture{bus: bus, rooms: rooms, sink: sink, games: games, sub: sub, clock: clock, ch: ch, done: done}
}

// next pulls the next fact observed by the test subscriber, skipping
// the intents the test itself published.
func (f *fixture) next(t *testing.T) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-f.ch:
			if !ok {
				t.Fatal("bus channel closed while waiting for event")
			}
			switch e.(type) {
			case events.TryStartGame, events.TryPlayMove, events.TryPass, events.PlayerLeaveRequested:
				continue
			}
			return e
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func (f *fixture) startGame(t *testing.T) events.GameStarted {
	t.Helper()
	f.bus.Publish(events.TryStartGame{Base: events.In(testRoom), Requester: seats[0]})
	_, ok := f.next(t).(events.GameCreated)
	require.True(t, ok, "want GameCreated first")
	started, ok := f.next(t).(events.GameStarted)
	require.True(t, ok, "want GameStarted")
	turn, ok := f.next(t).(events.TurnChanged)
	require.True(t, ok, "want TurnChanged")
	require.Equal(t, started.OpeningPlayer, turn.Player)
	return started
}

func TestStartGameDealsAndAnnouncesOpener(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	started := f.startGame(t)
	assert.Equal(t, 1, started.GameNumber)
	assert.Equal(t, seats, started.Seats)

	// The opener holds the three of diamonds.
	hand, ok := f.games.HandOf(testRoom, started.OpeningPlayer)
	require.True(t, ok)
	assert.True(t, card.Contains(hand, card.ThreeOfDiamonds))
	assert.Len(t, hand, card.HandSize)
	assert.True(t, f.games.MustIncludeOpening(testRoom))
}

func TestStartGameRejectsNonHost(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.bus.Publish(events.TryStartGame{Base: events.In(testRoom), Requester: seats[1]})
	assert.Eventually(t, func() bool {
		codes := f.sink.codes()
		return len(codes) == 1 && codes[0] == CodeNotHost
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartGameRequiresReadyHumans(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.rooms.mu.Lock()
	f.rooms.room.Ready = seats[:2]
	f.rooms.mu.Unlock()

	f.bus.Publish(events.TryStartGame{Base: events.In(testRoom), Requester: seats[0]})
	assert.Eventually(t, func() bool {
		codes := f.sink.codes()
		return len(codes) == 1 && codes[0] == CodeRoomNotReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOpeningMoveMustIncludeThreeOfDiamonds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	started := f.startGame(t)
	opener := started.OpeningPlayer
	hand, _ := f.games.HandOf(testRoom, opener)

	// Lead with the highest card instead of the three of diamonds.
	high := hand[len(hand)-1]
	f.bus.Publish(events.TryPlayMove{Base: events.In(testRoom), Player: opener, Cards: []card.Card{high}})

	assert.Eventually(t, func() bool {
		codes := f.sink.codes()
		return len(codes) == 1 && codes[0] == string(engine.CodeMustIncludeLowest)
	}, 2*time.Second, 10*time.Millisecond)

	f.bus.Publish(events.TryPlayMove{Base: events.In(testRoom), Player: opener, Cards: []card.Card{card.ThreeOfDiamonds}})
	played, ok := f.next(t).(events.MovePlayed)
	require.True(t, ok, "want MovePlayed, got %T", played)
	assert.Equal(t, opener, played.Player)
	assert.Equal(t, []card.Card{card.ThreeOfDiamonds}, played.Cards)
	assert.Equal(t, 12, played.Remaining)

	turn, ok := f.next(t).(events.TurnChanged)
	require.True(t, ok)
	assert.NotEqual(t, opener, turn.Player)
}

func TestRejectedMoveEmitsNoFacts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	started := f.startGame(t)
	notOnTurn := seats[0]
	if started.OpeningPlayer == notOnTurn {
		notOnTurn = seats[1]
	}
	hand, _ := f.games.HandOf(testRoom, notOnTurn)
	f.bus.Publish(events.TryPlayMove{Base: events.In(testRoom), Player: notOnTurn, Cards: hand[:1]})

	assert.Eventually(t, func() bool {
		codes := f.sink.codes()
		return len(codes) == 1 && codes[0] == string(engine.CodeNotYourTurn)
	}, 2*time.Second, 10*time.Millisecond)

	// State unchanged: the opening move is still pending.
	assert.True(t, f.games.MustIncludeOpening(testRoom))
}

// TestPlayToWinAndReset drives a full game with a lowest-single
// strategy: games terminate, the winner is announced with everyone's
// leftover counts, and the lobby reset fires after the delay.
func TestPlayToWinAndReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	started := f.startGame(t)
	turn := started.OpeningPlayer

	var won events.GameWon
	for i := 0; ; i++ {
		require.Less(t, i, 1000, "game did not terminate")

		hand, ok := f.games.HandOf(testRoom, turn)
		require.True(t, ok, "player on turn has no hand")

		size, beats, live := f.games.LastPlay(testRoom)
		played := false
		if !live {
			// Leading: lowest single. The opening 3d is also the
			// lowest card of whoever holds it.
			f.bus.Publish(events.TryPlayMove{Base: events.In(testRoom), Player: turn, Cards: hand[:1]})
			played = true
		} else {
			require.Equal(t, 1, size, "singles-only strategy keeps tricks at one card")
			for _, c := range hand {
				if beats([]card.Card{c}) {
					f.bus.Publish(events.TryPlayMove{Base: events.In(testRoom), Player: turn, Cards: []card.Card{c}})
					played = true
					break
				}
			}
			if !played {
				f.bus.Publish(events.TryPass{Base: events.In(testRoom), Player: turn})
			}
		}

		e := f.next(t)
		if played {
			mp, ok := e.(events.MovePlayed)
			require.True(t, ok, "want MovePlayed, got %T", e)
			if mp.Remaining == 0 {
				won, ok = f.next(t).(events.GameWon)
				require.True(t, ok, "want GameWon after the emptying move")
				break
			}
		} else {
			_, ok := e.(events.Passed)
			require.True(t, ok, "want Passed, got %T", e)
		}

		tc, ok := f.next(t).(events.TurnChanged)
		require.True(t, ok, "want TurnChanged, got %T", e)
		turn = tc.Player
	}

	assert.Equal(t, 1, won.GameNumber)
	assert.Zero(t, won.CardCounts[won.Winner])
	total := 0
	for _, n := range won.CardCounts {
		total += n
	}
	assert.Positive(t, total, "losers still hold cards")

	_, live := f.games.Snapshot(testRoom)
	assert.False(t, live, "game cleared after win")

	// The lobby reset fires after the delay, not before.
	f.clock.Advance(resetDelay).MustWait(context.Background())

	reset, ok := f.next(t).(events.GameReset)
	require.True(t, ok, "want GameReset")
	assert.Equal(t, 2, reset.NextGameNumber)
	assert.Equal(t, room.StatusWaiting, f.rooms.status)
}

func TestLeaveMidGameAbortsAndResets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.startGame(t)
	f.bus.Publish(events.PlayerLeaveRequested{Base: events.In(testRoom), Player: seats[2]})

	reset, ok := f.next(t).(events.GameReset)
	require.True(t, ok, "want GameReset, got %T", reset)
	assert.Equal(t, "player left", reset.Reason)

	_, live := f.games.Snapshot(testRoom)
	assert.False(t, live)
	assert.Eventually(t, func() bool {
		f.rooms.mu.Lock()
		defer f.rooms.mu.Unlock()
		return len(f.rooms.left) == 1 && f.rooms.left[0] == seats[2]
	}, 2*time.Second, 10*time.Millisecond)
}

// TestConcurrentViewsDuringPlay hammers every read view from another
// goroutine while a full game is applied through the locked mutators.
// Run with the race detector: the views and the apply path share the
// service lock, so neither side may see a half-applied move.
func TestConcurrentViewsDuringPlay(t *testing.T) {
	t.Parallel()
	games := NewService(&fakeRooms{}, quartz.NewMock(t), rand.New(rand.NewSource(7)), zerolog.Nop())

	g, number, err := games.start(testRoom, seats)
	require.NoError(t, err)
	require.Equal(t, 1, number)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, p := range seats {
				games.HandOf(testRoom, p)
			}
			games.Snapshot(testRoom)
			games.LastPlay(testRoom)
			games.MustIncludeOpening(testRoom)
		}
	}()

	turn := g.Turn()
	won := false
	for i := 0; !won; i++ {
		require.Less(t, i, 1000, "game did not terminate")

		handCards, ok := games.HandOf(testRoom, turn)
		require.True(t, ok, "player on turn has no hand")

		// Lowest-single strategy, as in TestPlayToWinAndReset.
		var play []card.Card
		size, beats, live := games.LastPlay(testRoom)
		if !live {
			play = handCards[:1]
		} else {
			require.Equal(t, 1, size)
			for _, c := range handCards {
				if beats([]card.Card{c}) {
					play = []card.Card{c}
					break
				}
			}
		}

		if play == nil {
			result, err := games.applyPass(testRoom, turn)
			require.NoError(t, err)
			turn = result.NextTurn
			continue
		}
		_, result, err := games.applyMove(testRoom, turn, play)
		require.NoError(t, err)
		won = result.Won
		turn = result.NextTurn
	}

	close(stop)
	wg.Wait()

	winner, ok := g.Winner()
	require.True(t, ok)
	assert.Empty(t, g.HandOf(winner))
}

func TestMoveWithoutGameReportsNoGame(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.bus.Publish(events.TryPlayMove{Base: events.In(testRoom), Player: seats[0], Cards: []card.Card{card.ThreeOfDiamonds}})
	assert.Eventually(t, func() bool {
		codes := f.sink.codes()
		return len(codes) == 1 && codes[0] == CodeNoGame
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoomTeardownCancelsPendingReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.startGame(t)
	f.bus.Publish(events.RoomDeleted{Base: events.In(testRoom)})

	assert.Eventually(t, func() bool {
		f.games.mu.RLock()
		defer f.games.mu.RUnlock()
		_, ok := f.games.games[testRoom]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

