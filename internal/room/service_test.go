package room

import (
	"sort"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/roomid"
)

func testService(t *testing.T) (*Service, *events.Bus, *quartz.Mock) {
	t.Helper()
	bus := events.NewBus(zerolog.Nop())
	clock := quartz.NewMock(t)
	return NewService(bus, clock, zerolog.Nop()), bus, clock
}

// drain returns every event already buffered for the subscriber and
// whether the channel is still open. Publishing is synchronous, so by
// the time a mutator returns its events are ready to read.
func drain(ch <-chan events.Event) (got []events.Event, open bool) {
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return got, false
			}
			got = append(got, e)
		default:
			return got, true
		}
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()
	svc, _, clock := testService(t)

	r := svc.Create("alice")
	require.NoError(t, roomid.Validate(r.ID))
	assert.Equal(t, "alice", r.Host)
	assert.Equal(t, []string{"alice"}, r.Players)
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Empty(t, r.Ready)
	assert.Equal(t, clock.Now().UTC(), r.CreatedAt)
	assert.Equal(t, clock.Now().UTC(), r.LastActive)

	got, err := svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestGetUnknownRoom(t *testing.T) {
	t.Parallel()
	svc, _, _ := testService(t)

	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoin(t *testing.T) {
	t.Parallel()
	svc, bus, _ := testService(t)
	r := svc.Create("alice")

	ch, cancel := bus.Subscribe(r.ID, "test")
	defer cancel()

	got, err := svc.Join(r.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got.Players)
	assert.Equal(t, "alice", got.Host, "joining never changes the host")

	evs, open := drain(ch)
	require.True(t, open)
	require.Len(t, evs, 1)
	joined, ok := evs[0].(events.PlayerJoined)
	require.True(t, ok, "want PlayerJoined, got %T", evs[0])
	assert.Equal(t, r.ID, joined.RoomID())
	assert.Equal(t, "bob", joined.Player)
}

func TestJoinErrors(t *testing.T) {
	t.Parallel()
	svc, _, _ := testService(t)
	r := svc.Create("alice")

	_, err := svc.Join("missing", "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Join(r.ID, "alice")
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	for _, p := range []string{"bob", "carol", "dave"} {
		_, err = svc.Join(r.ID, p)
		require.NoError(t, err)
	}
	_, err = svc.Join(r.ID, "eve")
	assert.ErrorIs(t, err, ErrFull)
}

func TestJoinClearsReadyMarks(t *testing.T) {
	t.Parallel()
	svc, _, _ := testService(t)
	r := svc.Create("alice")

	require.NoError(t, svc.SetReady(r.ID, "alice", true))
	got, err := svc.Get(r.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, got.Ready)

	got, err = svc.Join(r.ID, "bob")
	require.NoError(t, err)
	assert.Empty(t, got.Ready, "a new player invalidates earlier ready marks")
}

func TestLeaveNonHost(t *testing.T) {
	t.Parallel()
	svc, bus, _ := testService(t)
	r := svc.Create("alice")
	_, err := svc.Join(r.ID, "bob")
	require.NoError(t, err)

	ch, cancel := bus.Subscribe(r.ID, "test")
	defer cancel()

	require.NoError(t, svc.Leave(r.ID, "bob"))

	evs, open := drain(ch)
	require.True(t, open)
	require.Len(t, evs, 1)
	left, ok := evs[0].(events.PlayerLeft)
	require.True(t, ok, "want PlayerLeft, got %T", evs[0])
	assert.Equal(t, "bob", left.Player)
	assert.False(t, left.WasHost)
	assert.Empty(t, left.NewHost)

	got, err := svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Host)
	assert.Equal(t, []string{"alice"}, got.Players)
}

func TestLeaveErrors(t *testing.T) {
	t.Parallel()
	svc, _, _ := testService(t)
	r := svc.Create("alice")

	assert.ErrorIs(t, svc.Leave("missing", "alice"), ErrNotFound)
	assert.ErrorIs(t, svc.Leave(r.ID, "bob"), ErrNotMember)
}

func TestLeaveMigratesHostToFirstHuman(t *testing.T) {
	t.Parallel()
	svc, bus, _ := testService(t)
	r := svc.Create("alice")
	_, err := svc.Join(r.ID, "bot-1")
	require.NoError(t, err)
	_, err = svc.Join(r.ID, "bob")
	require.NoError(t, err)

	ch, cancel := bus.Subscribe(r.ID, "test")
	defer cancel()

	require.NoError(t, svc.Leave(r.ID, "alice"))

	evs, open := drain(ch)
	require.True(t, open)
	require.Len(t, evs, 2)

	left, ok := evs[0].(events.PlayerLeft)
	require.True(t, ok, "want PlayerLeft, got %T", evs[0])
	assert.True(t, left.WasHost)
	assert.Equal(t, "bob", left.NewHost, "bots are skipped when migrating the host seat")

	changed, ok := evs[1].(events.HostChanged)
	require.True(t, ok, "want HostChanged, got %T", evs[1])
	assert.Equal(t, "bob", changed.NewHost)

	got, err := svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Host)
}

func TestLastHumanLeavingDeletesRoom(t *testing.T) {
	t.Parallel()
	svc, bus, _ := testService(t)
	r := svc.Create("alice")
	_, err := svc.Join(r.ID, "bot-1")
	require.NoError(t, err)

	ch, cancel := bus.Subscribe(r.ID, "test")
	defer cancel()

	require.NoError(t, svc.Leave(r.ID, "alice"))

	evs, open := drain(ch)
	assert.False(t, open, "room teardown closes subscriber channels")
	require.Len(t, evs, 2)

	left, ok := evs[0].(events.PlayerLeft)
	require.True(t, ok, "want PlayerLeft, got %T", evs[0])
	assert.True(t, left.WasHost)

	_, ok = evs[1].(events.RoomDeleted)
	require.True(t, ok, "want RoomDeleted, got %T", evs[1])

	_, err = svc.Get(r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByHost(t *testing.T) {
	t.Parallel()
	svc, bus, _ := testService(t)
	r := svc.Create("alice")
	_, err := svc.Join(r.ID, "bob")
	require.NoError(t, err)

	ch, cancel := bus.Subscribe(r.ID, "test")
	defer cancel()

	assert.ErrorIs(t, svc.Delete(r.ID, "bob"), ErrNotHost)
	assert.ErrorIs(t, svc.Delete("missing", "alice"), ErrNotFound)

	require.NoError(t, svc.Delete(r.ID, "alice"))

	evs, open := drain(ch)
	assert.False(t, open)
	require.Len(t, evs, 1)
	_, ok := evs[0].(events.RoomDeleted)
	require.True(t, ok, "want RoomDeleted, got %T", evs[0])

	_, err = svc.Get(r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetReady(t *testing.T) {
	t.Parallel()
	svc, bus, _ := testService(t)
	r := svc.Create("alice")
	_, err := svc.Join(r.ID, "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetReady(r.ID, "eve", true), ErrNotMember)
	assert.ErrorIs(t, svc.SetReady("missing", "alice", true), ErrNotFound)

	ch, cancel := bus.Subscribe(r.ID, "test")
	defer cancel()

	require.NoError(t, svc.SetReady(r.ID, "bob", true))
	require.NoError(t, svc.SetReady(r.ID, "alice", true))

	got, err := svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got.Ready, "ready list follows seat order")

	require.NoError(t, svc.SetReady(r.ID, "bob", false))
	got, err = svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, got.Ready)

	evs, _ := drain(ch)
	require.Len(t, evs, 3)
	for i, want := range []struct {
		player string
		ready  bool
	}{{"bob", true}, {"alice", true}, {"bob", false}} {
		toggled, ok := evs[i].(events.PlayerReadyToggled)
		require.True(t, ok, "want PlayerReadyToggled, got %T", evs[i])
		assert.Equal(t, want.player, toggled.Player)
		assert.Equal(t, want.ready, toggled.Ready)
	}
}

func TestSetStatus(t *testing.T) {
	t.Parallel()
	svc, _, _ := testService(t)
	r := svc.Create("alice")
	require.NoError(t, svc.SetReady(r.ID, "alice", true))

	assert.ErrorIs(t, svc.SetStatus("missing", StatusPlaying), ErrNotFound)

	require.NoError(t, svc.SetStatus(r.ID, StatusPlaying))
	got, err := svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, got.Status)
	assert.Empty(t, got.Ready, "entering play spends the ready marks")

	require.NoError(t, svc.SetStatus(r.ID, StatusWaiting))
	got, err = svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, got.Status)
}

func TestTouchRefreshesActivity(t *testing.T) {
	t.Parallel()
	svc, _, clock := testService(t)
	r := svc.Create("alice")

	clock.Advance(time.Hour)
	svc.Touch(r.ID)
	svc.Touch("missing") // no-op

	got, err := svc.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.LastActive.Add(time.Hour), got.LastActive)
}

func TestListSortedByID(t *testing.T) {
	t.Parallel()
	svc, _, _ := testService(t)
	for i := 0; i < 5; i++ {
		svc.Create("alice")
	}

	rooms := svc.List()
	require.Len(t, rooms, 5)
	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestRoomSnapshotHelpers(t *testing.T) {
	t.Parallel()
	r := Room{Players: []string{"alice", "bob"}, Ready: []string{"bob"}}

	assert.True(t, r.HasPlayer("alice"))
	assert.False(t, r.HasPlayer("eve"))
	assert.True(t, r.IsReady("bob"))
	assert.False(t, r.IsReady("alice"))
}
